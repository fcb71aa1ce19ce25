package subs

import (
	"maps"
	"slices"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/app/orch"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/rs/zerolog"
)

// featureSubscriber is the common shape of the call feature subscribers:
// a seed applied at construction and a set of listeners.
type featureSubscriber struct {
	name string
	lis  listeners
	log  zerolog.Logger
}

func newFeatureSubscriber(name string) *featureSubscriber {
	return &featureSubscriber{
		name: name,
		log:  logger("subs.feature").With().Str("feature", name).Logger(),
	}
}

func (s *featureSubscriber) Unsubscribe() {
	if s.lis.close() {
		s.log.Debug().Msg("unsubscribed")
	}
}

// subscribeFeatures builds one subscriber per feature the call supports.
func subscribeFeatures(deps *Deps, ref *CallIDRef, f core.Features) []Subscriber {
	var out []Subscriber
	add := func(s *featureSubscriber) {
		out = append(out, s)
	}
	if f.Recording != nil {
		add(subscribeRecording(deps, ref, f.Recording))
	}
	if f.Transcription != nil {
		add(subscribeTranscription(deps, ref, f.Transcription))
	}
	if f.Transfer != nil {
		add(subscribeTransfer(deps, ref, f.Transfer))
	}
	if f.Captions != nil {
		add(subscribeCaptions(deps, ref, f.Captions))
	}
	if f.Spotlight != nil {
		add(subscribeSpotlight(deps, ref, f.Spotlight))
	}
	if f.RaiseHand != nil {
		add(subscribeRaiseHand(deps, ref, f.RaiseHand))
	}
	if f.Reactions != nil {
		add(subscribeReactions(deps, ref, f.Reactions))
	}
	if f.Diagnostics != nil {
		add(subscribeDiagnostics(deps, ref, f.Diagnostics))
	}
	if f.MediaAccess != nil {
		add(subscribeMediaAccess(deps, ref, f.MediaAccess))
	}
	if f.TogetherMode != nil {
		add(subscribeTogetherMode(deps, ref, f.TogetherMode))
	}
	return out
}

// updateCall applies fn to the live call behind ref; ended or unknown
// calls are skipped.
func updateCall(deps *Deps, ref *CallIDRef, fn func(d *app.Draft, c *domain.Call)) {
	deps.Store.Apply(func(d *app.Draft) {
		if c := d.Call(ref.ID()); c != nil {
			fn(d, c)
		}
	})
}

func isLocal(d *app.Draft, id domain.Identifier) bool {
	return d.State().UserID.Key() == id.Key()
}

func subscribeRecording(deps *Deps, ref *CallIDRef, f core.RecordingFeature) *featureSubscriber {
	s := newFeatureSubscriber("recording")
	set := func() {
		active := f.IsRecordingActive()
		updateCall(deps, ref, func(_ *app.Draft, c *domain.Call) { c.Recording.IsRecordingActive = active })
	}
	set()
	s.lis.add(f.OnIsRecordingActiveChanged(set))
	return s
}

func subscribeTranscription(deps *Deps, ref *CallIDRef, f core.TranscriptionFeature) *featureSubscriber {
	s := newFeatureSubscriber("transcription")
	set := func() {
		active := f.IsTranscriptionActive()
		updateCall(deps, ref, func(_ *app.Draft, c *domain.Call) { c.Transcription.IsTranscriptionActive = active })
	}
	set()
	s.lis.add(f.OnIsTranscriptionActiveChanged(set))
	return s
}

func subscribeTransfer(deps *Deps, ref *CallIDRef, f core.TransferFeature) *featureSubscriber {
	s := newFeatureSubscriber("transfer")
	s.lis.add(f.OnTransferAccepted(func(ev core.TransferAccepted) {
		updateCall(deps, ref, func(d *app.Draft, c *domain.Call) {
			if c.Transfer.AcceptedTransfers == nil {
				c.Transfer.AcceptedTransfers = make(map[string]domain.AcceptedTransfer)
			}
			c.Transfer.AcceptedTransfers[ev.TargetCallID] = domain.AcceptedTransfer{
				TargetCallID: ev.TargetCallID,
				Timestamp:    d.Now(),
			}
		})
	}))
	return s
}

func subscribeCaptions(deps *Deps, ref *CallIDRef, f core.CaptionsFeature) *featureSubscriber {
	s := newFeatureSubscriber("captions")
	limit := deps.Store.Capacities().Captions
	active, lang := f.IsCaptionsActive(), f.SpokenLanguage()
	updateCall(deps, ref, func(_ *app.Draft, c *domain.Call) {
		c.Captions.IsCaptionsActive = active
		c.Captions.SpokenLanguage = lang
	})
	s.lis.add(
		f.OnCaptionsActiveChanged(func() {
			active := f.IsCaptionsActive()
			updateCall(deps, ref, func(_ *app.Draft, c *domain.Call) { c.Captions.IsCaptionsActive = active })
		}),
		f.OnSpokenLanguageChanged(func() {
			lang := f.SpokenLanguage()
			updateCall(deps, ref, func(_ *app.Draft, c *domain.Call) { c.Captions.SpokenLanguage = lang })
		}),
		f.OnCaptionsReceived(func(caption domain.Caption) {
			updateCall(deps, ref, func(d *app.Draft, c *domain.Call) {
				if caption.Timestamp.IsZero() {
					caption.Timestamp = d.Now()
				}
				c.Captions.Captions = AppendCaption(c.Captions.Captions, caption, limit)
			})
		}),
	)
	return s
}

// AppendCaption adds caption to list. A pending Partial caption from the
// same speaker is replaced instead of kept, and only the newest limit
// captions survive. list is never modified in place.
func AppendCaption(list []domain.Caption, caption domain.Caption, limit int) []domain.Caption {
	out := slices.Clone(list)
	speaker := caption.Speaker.Identifier.Key()
	i := slices.IndexFunc(out, func(c domain.Caption) bool {
		return c.ResultType == domain.CaptionPartial && c.Speaker.Identifier.Key() == speaker
	})
	if i >= 0 {
		out = slices.Delete(out, i, i+1)
	}
	out = append(out, caption)
	if limit > 0 && len(out) > limit {
		out = slices.Delete(out, 0, len(out)-limit)
	}
	return out
}

func subscribeSpotlight(deps *Deps, ref *CallIDRef, f core.SpotlightFeature) *featureSubscriber {
	s := newFeatureSubscriber("spotlight")
	apply := func(added, removed []domain.SpotlightedParticipant) {
		updateCall(deps, ref, func(d *app.Draft, c *domain.Call) {
			list := c.Spotlight.SpotlightedParticipants
			for _, sp := range removed {
				key := sp.Identifier.Key()
				list = slices.DeleteFunc(list, func(x domain.SpotlightedParticipant) bool { return x.Identifier.Key() == key })
				if isLocal(d, sp.Identifier) {
					c.Spotlight.LocalParticipantSpotlight = nil
				} else if p := d.Participant(c.ID, key); p != nil {
					p.Spotlight = nil
				}
			}
			for _, sp := range added {
				key := sp.Identifier.Key()
				list = slices.DeleteFunc(list, func(x domain.SpotlightedParticipant) bool { return x.Identifier.Key() == key })
				list = append(list, sp)
				if isLocal(d, sp.Identifier) {
					c.Spotlight.LocalParticipantSpotlight = &domain.Spotlight{Order: sp.Order}
				} else if p := d.Participant(c.ID, key); p != nil {
					p.Spotlight = &domain.Spotlight{Order: sp.Order}
				}
			}
			c.Spotlight.SpotlightedParticipants = list
		})
	}
	apply(f.SpotlightedParticipants(), nil)
	s.lis.add(f.OnSpotlightChanged(func(ev core.SpotlightChanged) {
		apply(ev.Added, ev.Removed)
	}))
	return s
}

func subscribeRaiseHand(deps *Deps, ref *CallIDRef, f core.RaiseHandFeature) *featureSubscriber {
	s := newFeatureSubscriber("raiseHand")
	set := func(h domain.RaisedHand, raised bool) {
		updateCall(deps, ref, func(d *app.Draft, c *domain.Call) {
			key := h.Identifier.Key()
			list := slices.DeleteFunc(c.RaiseHand.RaisedHands, func(x domain.RaisedHand) bool { return x.Identifier.Key() == key })
			var hand *domain.RaisedHand
			if raised {
				list = append(list, h)
				hand = &h
			}
			c.RaiseHand.RaisedHands = list
			if isLocal(d, h.Identifier) {
				c.RaiseHand.LocalParticipantRaisedHand = hand
			} else if p := d.Participant(c.ID, key); p != nil {
				p.RaisedHand = hand
			}
		})
	}
	for _, h := range f.RaisedHands() {
		set(h, true)
	}
	s.lis.add(
		f.OnRaisedHand(func(h domain.RaisedHand) { set(h, true) }),
		f.OnLoweredHand(func(h domain.RaisedHand) { set(h, false) }),
	)
	return s
}

func subscribeReactions(deps *Deps, ref *CallIDRef, f core.ReactionsFeature) *featureSubscriber {
	s := newFeatureSubscriber("reactions")
	s.lis.add(f.OnReaction(func(ev core.ReactionMessage) {
		updateCall(deps, ref, func(d *app.Draft, c *domain.Call) {
			r := &domain.Reaction{ReactionType: ev.ReactionType, ReceivedOn: d.Now()}
			if isLocal(d, ev.Identifier) {
				c.LocalParticipantReaction = r
				return
			}
			if p := d.Participant(c.ID, ev.Identifier.Key()); p != nil {
				p.Reaction = r
			}
		})
	}))
	return s
}

func subscribeDiagnostics(deps *Deps, ref *CallIDRef, f core.DiagnosticsFeature) *featureSubscriber {
	s := newFeatureSubscriber("diagnostics")
	network, media := maps.Clone(f.Network()), maps.Clone(f.Media())
	updateCall(deps, ref, func(_ *app.Draft, c *domain.Call) {
		c.Diagnostics.Network = network
		c.Diagnostics.Media = media
	})
	s.lis.add(
		f.OnNetworkDiagnosticChanged(func(ev core.DiagnosticChanged) {
			updateCall(deps, ref, func(_ *app.Draft, c *domain.Call) {
				if c.Diagnostics.Network == nil {
					c.Diagnostics.Network = make(map[string]domain.Diagnostic)
				}
				c.Diagnostics.Network[ev.Name] = ev.Value
			})
		}),
		f.OnMediaDiagnosticChanged(func(ev core.DiagnosticChanged) {
			updateCall(deps, ref, func(_ *app.Draft, c *domain.Call) {
				if c.Diagnostics.Media == nil {
					c.Diagnostics.Media = make(map[string]domain.Diagnostic)
				}
				c.Diagnostics.Media[ev.Name] = ev.Value
			})
		}),
	)
	return s
}

func subscribeMediaAccess(deps *Deps, ref *CallIDRef, f core.MediaAccessFeature) *featureSubscriber {
	s := newFeatureSubscriber("mediaAccess")
	set := func(accesses []core.ParticipantMediaAccess) {
		updateCall(deps, ref, func(d *app.Draft, c *domain.Call) {
			for _, a := range accesses {
				if p := d.Participant(c.ID, a.Identifier.Key()); p != nil {
					access := a.Access
					p.MediaAccess = &access
				}
			}
		})
	}
	set(f.MediaAccesses())
	s.lis.add(f.OnMediaAccessChanged(func(ev core.MediaAccessChanged) { set(ev.MediaAccesses) }))
	return s
}

// subscribeTogetherMode registers together mode streams as feature render
// units so they can be rendered like participant streams.
func subscribeTogetherMode(deps *Deps, ref *CallIDRef, f core.TogetherModeFeature) *featureSubscriber {
	s := newFeatureSubscriber("togetherMode")
	add := func(streams []core.RemoteVideoStream) {
		callID := ref.ID()
		snaps := make([]*domain.RemoteVideoStream, 0, len(streams))
		for _, rs := range streams {
			key := app.FeatureKey(callID, orch.TogetherMode, rs.ID())
			deps.Registry.Track(key, rs)
			snaps = append(snaps, &domain.RemoteVideoStream{
				ID:              rs.ID(),
				MediaStreamType: rs.MediaStreamType(),
				IsAvailable:     rs.IsAvailable(),
				RenderStatus:    deps.Orch.Status(key),
			})
		}
		updateCall(deps, ref, func(_ *app.Draft, c *domain.Call) {
			if c.TogetherMode.Streams == nil {
				c.TogetherMode.Streams = make(map[int]*domain.RemoteVideoStream)
			}
			for _, st := range snaps {
				if old, ok := c.TogetherMode.Streams[st.ID]; ok {
					st.View = old.View
				}
				c.TogetherMode.Streams[st.ID] = st
			}
			c.TogetherMode.IsActive = len(c.TogetherMode.Streams) > 0
		})
	}
	remove := func(streams []core.RemoteVideoStream) {
		callID := ref.ID()
		for _, rs := range streams {
			deps.Orch.Forget(app.FeatureKey(callID, orch.TogetherMode, rs.ID()))
		}
		updateCall(deps, ref, func(_ *app.Draft, c *domain.Call) {
			for _, rs := range streams {
				delete(c.TogetherMode.Streams, rs.ID())
			}
			c.TogetherMode.IsActive = len(c.TogetherMode.Streams) > 0
		})
	}
	add(f.Streams())
	s.lis.add(f.OnStreamsUpdated(func(ev core.RemoteVideoStreamsUpdated) {
		add(ev.Added)
		remove(ev.Removed)
	}))
	return s
}
