package subs

import (
	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/rs/zerolog"
)

type ParticipantSubscriber struct {
	deps    *Deps
	ref     *CallIDRef
	p       core.RemoteParticipant
	key     string
	lis     listeners
	streams children[int, *RemoteStreamSubscriber]
	log     zerolog.Logger
}

func NewParticipantSubscriber(deps *Deps, ref *CallIDRef, p core.RemoteParticipant) *ParticipantSubscriber {
	key := p.Identifier().Key()
	s := &ParticipantSubscriber{
		deps: deps,
		ref:  ref,
		p:    p,
		key:  key,
		log:  logger("subs.participant").With().Str("participant", key).Logger(),
	}
	for _, rs := range p.VideoStreams() {
		s.addStream(rs)
	}
	s.lis.add(
		p.OnStateChanged(s.onStateChanged),
		p.OnIsMutedChanged(s.onMutedChanged),
		p.OnIsSpeakingChanged(s.onSpeakingChanged),
		p.OnDisplayNameChanged(s.onDisplayNameChanged),
		p.OnVideoStreamsUpdated(s.onStreamsUpdated),
	)
	return s
}

func (s *ParticipantSubscriber) Key() string { return s.key }

func (s *ParticipantSubscriber) update(fn func(p *domain.RemoteParticipant)) {
	s.deps.Store.Apply(func(d *app.Draft) {
		if p := d.Participant(s.ref.ID(), s.key); p != nil {
			fn(p)
		}
	})
}

func (s *ParticipantSubscriber) onStateChanged() {
	state, reason := s.p.State(), s.p.EndReason()
	s.update(func(p *domain.RemoteParticipant) {
		p.State = state
		p.EndReason = reason
	})
}

func (s *ParticipantSubscriber) onMutedChanged() {
	muted := s.p.IsMuted()
	s.update(func(p *domain.RemoteParticipant) { p.IsMuted = muted })
}

func (s *ParticipantSubscriber) onSpeakingChanged() {
	speaking := s.p.IsSpeaking()
	s.update(func(p *domain.RemoteParticipant) { p.IsSpeaking = speaking })
}

func (s *ParticipantSubscriber) onDisplayNameChanged() {
	name := s.p.DisplayName()
	s.update(func(p *domain.RemoteParticipant) { p.DisplayName = name })
}

func (s *ParticipantSubscriber) onStreamsUpdated(ev core.RemoteVideoStreamsUpdated) {
	for _, rs := range ev.Added {
		s.addStream(rs)
	}
	for _, rs := range ev.Removed {
		s.removeStream(rs)
	}
}

func (s *ParticipantSubscriber) addStream(rs core.RemoteVideoStream) {
	id := rs.ID()
	callID := s.ref.ID()
	key := app.RemoteKey(callID, s.key, id)
	s.deps.Registry.Track(key, rs)
	status := s.deps.Orch.Status(key)

	stream := &domain.RemoteVideoStream{
		ID:              id,
		MediaStreamType: rs.MediaStreamType(),
		IsAvailable:     rs.IsAvailable(),
		RenderStatus:    status,
	}
	s.deps.Store.Apply(func(d *app.Draft) {
		p := d.Participant(callID, s.key)
		if p == nil {
			return
		}
		if old, ok := p.VideoStreams[id]; ok {
			stream.View = old.View
		}
		p.VideoStreams[id] = stream
		if stream.MediaStreamType == domain.MediaScreenSharing && stream.IsAvailable {
			d.Call(callID).ScreenShareRemoteParticipant = s.key
		}
	})
	s.streams.replace(id, func() *RemoteStreamSubscriber {
		return NewRemoteStreamSubscriber(s.deps, s.ref, s.key, rs)
	})
	s.log.Debug().Int("stream_id", id).Str("type", string(stream.MediaStreamType)).Msg("stream added")
}

func (s *ParticipantSubscriber) removeStream(rs core.RemoteVideoStream) {
	id := rs.ID()
	if sub, ok := s.streams.remove(id); ok {
		sub.Unsubscribe()
	}
	callID := s.ref.ID()
	s.deps.Orch.Forget(app.RemoteKey(callID, s.key, id))
	s.deps.Store.Apply(func(d *app.Draft) {
		p := d.Participant(callID, s.key)
		if p == nil {
			return
		}
		delete(p.VideoStreams, id)
		releaseScreenShare(d.Call(callID), p, id)
	})
	s.log.Debug().Int("stream_id", id).Msg("stream removed")
}

// Unsubscribe detaches the stream subscribers, then the participant's own
// listeners.
func (s *ParticipantSubscriber) Unsubscribe() {
	if s.lis.isClosed() {
		return
	}
	s.streams.closeAll()
	s.lis.close()
}

// releaseScreenShare clears the call's screen sharer when it is p and p
// has no other available screen share besides stream skipID.
func releaseScreenShare(c *domain.Call, p *domain.RemoteParticipant, skipID int) {
	if c == nil || c.ScreenShareRemoteParticipant != p.Key() {
		return
	}
	if p.HasAvailableScreenShare(skipID) {
		return
	}
	c.ScreenShareRemoteParticipant = ""
}
