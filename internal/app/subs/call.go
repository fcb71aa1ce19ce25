package subs

import (
	"slices"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/rs/zerolog"
)

type CallSubscriber struct {
	deps         *Deps
	call         core.Call
	ref          *CallIDRef
	lis          listeners
	participants children[string, *ParticipantSubscriber]
	features     []Subscriber
	log          zerolog.Logger
}

// NewCallSubscriber puts the call into the snapshot together with the
// participants, local streams and feature state it already has, then
// listens for changes.
func NewCallSubscriber(deps *Deps, call core.Call) *CallSubscriber {
	id := call.ID()
	s := &CallSubscriber{
		deps: deps,
		call: call,
		ref:  NewCallIDRef(id, deps.History),
		log:  logger("subs.call").With().Str("call_id", id).Logger(),
	}

	snap := domain.NewCall(id, deps.Store.Capacities().EndedParticipants)
	snap.Direction = call.Direction()
	snap.State = call.State()
	snap.IsMuted = call.IsMuted()
	snap.IsScreenSharingOn = call.IsScreenSharingOn()
	deps.Store.Apply(func(d *app.Draft) {
		snap.StartTime = d.Now()
		d.PutCall(snap)
	})

	for _, ls := range call.LocalVideoStreams() {
		s.addLocal(ls)
	}
	for _, p := range call.RemoteParticipants() {
		s.addParticipant(p)
	}
	s.features = subscribeFeatures(deps, s.ref, call.Features())

	s.lis.add(
		call.OnStateChanged(s.onStateChanged),
		call.OnIDChanged(s.onIDChanged),
		call.OnIsMutedChanged(s.onMutedChanged),
		call.OnIsScreenSharingOnChanged(s.onScreenSharingChanged),
		call.OnLocalVideoStreamsUpdated(s.onLocalStreamsUpdated),
		call.OnRemoteParticipantsUpdated(s.onParticipantsUpdated),
	)
	return s
}

// ID is the call's current id.
func (s *CallSubscriber) ID() string { return s.ref.ID() }

func (s *CallSubscriber) Ref() *CallIDRef { return s.ref }

func (s *CallSubscriber) onStateChanged() {
	state := s.call.State()
	s.deps.Store.Apply(func(d *app.Draft) {
		if c := d.Call(s.ref.ID()); c != nil {
			c.State = state
		}
	})
	s.log.Debug().Str("status", string(state)).Msg("call state changed")
}

// onIDChanged records the rename and moves the render units in one step,
// moves the snapshot entry next, and updates the capsule last.
func (s *CallSubscriber) onIDChanged() {
	newID := s.call.ID()
	oldID := s.ref.ID()
	if newID == oldID {
		return
	}
	s.deps.Orch.RenameCall(oldID, newID)
	s.deps.Store.Apply(func(d *app.Draft) {
		d.RenameCall(oldID, newID)
	})
	s.ref.set(newID)
	s.log = logger("subs.call").With().Str("call_id", newID).Logger()
	s.log.Info().Str("old_id", oldID).Msg("call id changed")
}

func (s *CallSubscriber) onMutedChanged() {
	muted := s.call.IsMuted()
	s.deps.Store.Apply(func(d *app.Draft) {
		if c := d.Call(s.ref.ID()); c != nil {
			c.IsMuted = muted
		}
	})
}

func (s *CallSubscriber) onScreenSharingChanged() {
	on := s.call.IsScreenSharingOn()
	s.deps.Store.Apply(func(d *app.Draft) {
		if c := d.Call(s.ref.ID()); c != nil {
			c.IsScreenSharingOn = on
		}
	})
}

func (s *CallSubscriber) onLocalStreamsUpdated(ev core.LocalVideoStreamsUpdated) {
	for _, ls := range ev.Removed {
		s.removeLocal(ls)
	}
	for _, ls := range ev.Added {
		s.addLocal(ls)
	}
}

func (s *CallSubscriber) addLocal(ls core.LocalVideoStream) {
	id := s.ref.ID()
	t := ls.MediaStreamType()
	s.deps.Registry.Track(app.LocalKey(id, t), ls)
	status := s.deps.Orch.Status(app.LocalKey(id, t))

	stream := domain.LocalVideoStream{
		Source:          ls.Source(),
		MediaStreamType: t,
		RenderStatus:    status,
	}
	s.deps.Store.Apply(func(d *app.Draft) {
		c := d.Call(id)
		if c == nil {
			return
		}
		if i := c.LocalStream(t); i >= 0 {
			stream.View = c.LocalVideoStreams[i].View
			c.LocalVideoStreams[i] = stream
			return
		}
		c.LocalVideoStreams = append(c.LocalVideoStreams, stream)
	})
}

func (s *CallSubscriber) removeLocal(ls core.LocalVideoStream) {
	id := s.ref.ID()
	t := ls.MediaStreamType()
	s.deps.Orch.Forget(app.LocalKey(id, t))
	s.deps.Store.Apply(func(d *app.Draft) {
		c := d.Call(id)
		if c == nil {
			return
		}
		c.LocalVideoStreams = slices.DeleteFunc(c.LocalVideoStreams, func(x domain.LocalVideoStream) bool {
			return x.MediaStreamType == t
		})
	})
}

func (s *CallSubscriber) onParticipantsUpdated(ev core.RemoteParticipantsUpdated) {
	for _, p := range ev.Added {
		s.addParticipant(p)
	}
	for _, p := range ev.Removed {
		s.removeParticipant(p)
	}
}

// addParticipant also handles a participant announced again while
// present: its renders are bound to the previous stream objects, so they
// are dropped, while feature state carries over.
func (s *CallSubscriber) addParticipant(p core.RemoteParticipant) {
	key := p.Identifier().Key()
	s.forgetRenders(key)
	snap := &domain.RemoteParticipant{
		Identifier:   p.Identifier(),
		DisplayName:  p.DisplayName(),
		State:        p.State(),
		EndReason:    p.EndReason(),
		IsMuted:      p.IsMuted(),
		IsSpeaking:   p.IsSpeaking(),
		VideoStreams: make(map[int]*domain.RemoteVideoStream),
	}
	s.deps.Store.Apply(func(d *app.Draft) {
		id := s.ref.ID()
		if old := d.Participant(id, key); old != nil {
			snap.RaisedHand = old.RaisedHand
			snap.Reaction = old.Reaction
			snap.Spotlight = old.Spotlight
			snap.MediaAccess = old.MediaAccess
		}
		d.PutParticipant(id, snap)
	})
	s.participants.replace(key, func() *ParticipantSubscriber {
		return NewParticipantSubscriber(s.deps, s.ref, p)
	})
	s.log.Debug().Str("participant", key).Msg("participant added")
}

func (s *CallSubscriber) removeParticipant(p core.RemoteParticipant) {
	key := p.Identifier().Key()
	if sub, ok := s.participants.remove(key); ok {
		sub.Unsubscribe()
	}
	s.forgetRenders(key)
	id := s.ref.ID()
	state, reason := p.State(), p.EndReason()
	s.deps.Store.Apply(func(d *app.Draft) {
		if rp := d.Participant(id, key); rp != nil {
			rp.State = state
		}
		d.EndParticipant(id, key, reason)
	})
	s.log.Debug().Str("participant", key).Msg("participant removed")
}

// forgetRenders stops and drops every render unit of the participant.
func (s *CallSubscriber) forgetRenders(key string) {
	for _, k := range s.deps.Registry.Keys(s.ref.ID()) {
		if k.Kind == app.RenderRemote && k.Owner == key {
			s.deps.Orch.Forget(k)
		}
	}
}

// Participant returns the subscriber of a live participant by key.
func (s *CallSubscriber) Participant(key string) (*ParticipantSubscriber, bool) {
	return s.participants.get(key)
}

// Unsubscribe detaches participants and features, then the call's own
// listeners. Render units stay registered; the agent stops them when the
// call leaves.
func (s *CallSubscriber) Unsubscribe() {
	if s.lis.isClosed() {
		return
	}
	s.participants.closeAll()
	for _, f := range s.features {
		f.Unsubscribe()
	}
	s.lis.close()
}
