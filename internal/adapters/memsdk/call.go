package memsdk

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
)

type Call struct {
	faults

	mu            sync.RWMutex
	id            string
	direction     domain.CallDirection
	state         domain.CallStatus
	endReason     *domain.EndReason
	muted         bool
	screenSharing bool
	locals        []*LocalStream
	participants  []core.RemoteParticipant
	features      core.Features
	agent         *Agent

	stateChanged        core.Signal
	idChanged           core.Signal
	mutedChanged        core.Signal
	screenSharingChange core.Signal
	localsUpdated       core.Topic[core.LocalVideoStreamsUpdated]
	participantsUpdated core.Topic[core.RemoteParticipantsUpdated]
}

func NewCall(id string, direction domain.CallDirection) *Call {
	return &Call{id: id, direction: direction, state: domain.CallNone}
}

func (c *Call) setAgent(a *Agent) {
	c.mu.Lock()
	c.agent = a
	c.mu.Unlock()
}

func (c *Call) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *Call) Direction() domain.CallDirection { return c.direction }

func (c *Call) State() domain.CallStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Call) EndReason() *domain.EndReason {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endReason
}

func (c *Call) IsMuted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

func (c *Call) IsScreenSharingOn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.screenSharing
}

func (c *Call) LocalVideoStreams() []core.LocalVideoStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.LocalVideoStream, 0, len(c.locals))
	for _, s := range c.locals {
		out = append(out, s)
	}
	return out
}

func (c *Call) RemoteParticipants() []core.RemoteParticipant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.participants)
}

func (c *Call) Features() core.Features {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.features
}

func (c *Call) Mute(context.Context) error {
	if err := c.take("mute"); err != nil {
		return err
	}
	c.SetMuted(true)
	return nil
}

func (c *Call) Unmute(context.Context) error {
	if err := c.take("unmute"); err != nil {
		return err
	}
	c.SetMuted(false)
	return nil
}

func (c *Call) StartVideo(_ context.Context, stream core.LocalVideoStream) error {
	if err := c.take("startVideo"); err != nil {
		return err
	}
	ls, ok := stream.(*LocalStream)
	if !ok {
		ls = NewLocalStream(stream.Source(), stream.MediaStreamType())
	}
	c.AddLocalStream(ls)
	return nil
}

func (c *Call) StopVideo(_ context.Context, stream core.LocalVideoStream) error {
	if err := c.take("stopVideo"); err != nil {
		return err
	}
	c.RemoveLocalStream(stream.MediaStreamType())
	return nil
}

func (c *Call) StartScreenSharing(context.Context) error {
	if err := c.take("startScreenSharing"); err != nil {
		return err
	}
	c.SetScreenSharing(true)
	return nil
}

func (c *Call) StopScreenSharing(context.Context) error {
	if err := c.take("stopScreenSharing"); err != nil {
		return err
	}
	c.SetScreenSharing(false)
	return nil
}

func (c *Call) Hold(context.Context) error {
	if err := c.take("hold"); err != nil {
		return err
	}
	c.SetState(domain.CallLocalHold)
	return nil
}

func (c *Call) Resume(context.Context) error {
	if err := c.take("resume"); err != nil {
		return err
	}
	c.SetState(domain.CallConnected)
	return nil
}

func (c *Call) HangUp(context.Context, bool) error {
	if err := c.take("hangUp"); err != nil {
		return err
	}
	c.SetState(domain.CallDisconnecting)
	c.mu.RLock()
	a := c.agent
	c.mu.RUnlock()
	if a != nil {
		a.RemoveCall(c, domain.EndReason{})
		return nil
	}
	c.SetState(domain.CallDisconnected)
	return nil
}

func (c *Call) OnStateChanged(fn func()) core.Off   { return c.stateChanged.OnSignal(fn) }
func (c *Call) OnIDChanged(fn func()) core.Off      { return c.idChanged.OnSignal(fn) }
func (c *Call) OnIsMutedChanged(fn func()) core.Off { return c.mutedChanged.OnSignal(fn) }
func (c *Call) OnIsScreenSharingOnChanged(fn func()) core.Off {
	return c.screenSharingChange.OnSignal(fn)
}
func (c *Call) OnLocalVideoStreamsUpdated(fn func(core.LocalVideoStreamsUpdated)) core.Off {
	return c.localsUpdated.On(fn)
}
func (c *Call) OnRemoteParticipantsUpdated(fn func(core.RemoteParticipantsUpdated)) core.Off {
	return c.participantsUpdated.On(fn)
}

// ListenerCount sums the listeners over every call level event.
func (c *Call) ListenerCount() int {
	return c.stateChanged.Len() + c.idChanged.Len() + c.mutedChanged.Len() +
		c.screenSharingChange.Len() + c.localsUpdated.Len() + c.participantsUpdated.Len()
}

func (c *Call) SetState(s domain.CallStatus) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.stateChanged.Emit(struct{}{})
}

// SetID simulates the server reassigning the call id.
func (c *Call) SetID(id string) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
	c.idChanged.Emit(struct{}{})
}

func (c *Call) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
	c.mutedChanged.Emit(struct{}{})
}

// SetScreenSharing toggles the flag together with the local screen share
// stream, as an SDK does.
func (c *Call) SetScreenSharing(on bool) {
	c.mu.Lock()
	c.screenSharing = on
	c.mu.Unlock()
	c.screenSharingChange.Emit(struct{}{})
	if on {
		c.AddLocalStream(NewLocalStream(domain.VideoDeviceInfo{ID: "screen", Name: "Screen"}, domain.MediaScreenSharing))
	} else {
		c.RemoveLocalStream(domain.MediaScreenSharing)
	}
}

// AddLocalStream replaces any local stream of the same type.
func (c *Call) AddLocalStream(s *LocalStream) {
	c.mu.Lock()
	var removed []core.LocalVideoStream
	c.locals = slices.DeleteFunc(c.locals, func(old *LocalStream) bool {
		if old.MediaStreamType() == s.MediaStreamType() {
			removed = append(removed, old)
			return true
		}
		return false
	})
	c.locals = append(c.locals, s)
	c.mu.Unlock()
	c.localsUpdated.Emit(core.LocalVideoStreamsUpdated{Added: []core.LocalVideoStream{s}, Removed: removed})
}

func (c *Call) RemoveLocalStream(t domain.MediaStreamType) {
	c.mu.Lock()
	var removed []core.LocalVideoStream
	c.locals = slices.DeleteFunc(c.locals, func(old *LocalStream) bool {
		if old.MediaStreamType() == t {
			removed = append(removed, old)
			return true
		}
		return false
	})
	c.mu.Unlock()
	if len(removed) == 0 {
		return
	}
	c.localsUpdated.Emit(core.LocalVideoStreamsUpdated{Removed: removed})
}

// AddParticipant accepts any participant implementation, so peers backed by
// a real connection can join an in-memory call.
func (c *Call) AddParticipant(p core.RemoteParticipant) {
	c.mu.Lock()
	c.participants = append(c.participants, p)
	c.mu.Unlock()
	c.participantsUpdated.Emit(core.RemoteParticipantsUpdated{Added: []core.RemoteParticipant{p}})
}

// RemoveParticipant disconnects p with reason and emits the removal. Only
// in-memory participants are disconnected here; other implementations own
// their state.
func (c *Call) RemoveParticipant(p core.RemoteParticipant, reason domain.EndReason) {
	c.mu.Lock()
	i := slices.Index(c.participants, p)
	if i < 0 {
		c.mu.Unlock()
		return
	}
	c.participants = slices.Delete(c.participants, i, i+1)
	c.mu.Unlock()
	if mp, ok := p.(*Participant); ok {
		mp.disconnect(reason)
	}
	c.participantsUpdated.Emit(core.RemoteParticipantsUpdated{Removed: []core.RemoteParticipant{p}})
}

// SetFeatures installs the feature set; it is read once per subscription.
func (c *Call) SetFeatures(f core.Features) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.features = f
}
