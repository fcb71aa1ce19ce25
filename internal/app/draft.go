package app

import (
	"time"

	"github.com/dkeye/callstate/internal/domain"
)

type participantRef struct {
	callID string
	key    string
}

type streamRef struct {
	callID string
	owner  string
	id     int
}

// Draft is the copy-on-write editor handed to Store.Apply. Accessors that
// return pointers clone the addressed value on first access in this draft,
// so the returned value may be mutated freely while the previous snapshot
// stays untouched. Values read through State() must not be mutated.
type Draft struct {
	next *domain.State
	caps domain.Capacities
	now  time.Time

	calls   map[string]bool
	parts   map[participantRef]bool
	streams map[streamRef]bool
	views   map[string]bool
}

func newDraft(base *domain.State, caps domain.Capacities, now time.Time) *Draft {
	next := base.ShallowClone()
	next.Version = base.Version + 1
	return &Draft{
		next:    next,
		caps:    caps,
		now:     now,
		calls:   make(map[string]bool),
		parts:   make(map[participantRef]bool),
		streams: make(map[streamRef]bool),
		views:   make(map[string]bool),
	}
}

// State is a read-only view of the draft.
func (d *Draft) State() *domain.State { return d.next }

func (d *Draft) Now() time.Time { return d.now }

func (d *Draft) Capacities() domain.Capacities { return d.caps }

// Call returns a mutable copy of an active call, or nil when the call is
// unknown or already ended.
func (d *Draft) Call(id string) *domain.Call {
	c, ok := d.next.Calls[id]
	if !ok || c.Ended() {
		return nil
	}
	if !d.calls[id] {
		c = c.Clone()
		d.next.Calls[id] = c
		d.calls[id] = true
	}
	return c
}

// PutCall inserts a freshly built call. The draft takes ownership of c.
// An ended call with the same id leaves the history.
func (d *Draft) PutCall(c *domain.Call) {
	d.next.Calls[c.ID] = c
	d.calls[c.ID] = true
	d.next.CallsEnded = d.next.CallsEnded.Delete(c.ID)
}

// EndCall moves an active call into the ended history in one step.
func (d *Draft) EndCall(id string, reason *domain.EndReason) bool {
	c := d.Call(id)
	if c == nil {
		return false
	}
	end := d.now
	c.EndTime = &end
	if reason != nil {
		r := *reason
		c.EndReason = &r
	}
	delete(d.next.Calls, id)
	d.next.CallsEnded = d.next.CallsEnded.Put(id, c)
	return true
}

// RenameCall re-keys an active call under newID.
func (d *Draft) RenameCall(oldID, newID string) bool {
	c := d.Call(oldID)
	if c == nil {
		return false
	}
	delete(d.next.Calls, oldID)
	delete(d.calls, oldID)
	c.ID = newID
	d.next.Calls[newID] = c
	d.calls[newID] = true
	d.next.CallsEnded = d.next.CallsEnded.Delete(newID)
	return true
}

func (d *Draft) Participant(callID, key string) *domain.RemoteParticipant {
	c := d.Call(callID)
	if c == nil {
		return nil
	}
	p, ok := c.RemoteParticipants[key]
	if !ok {
		return nil
	}
	ref := participantRef{callID: callID, key: key}
	if !d.parts[ref] {
		p = p.Clone()
		c.RemoteParticipants[key] = p
		d.parts[ref] = true
	}
	return p
}

func (d *Draft) PutParticipant(callID string, p *domain.RemoteParticipant) bool {
	c := d.Call(callID)
	if c == nil {
		return false
	}
	key := p.Key()
	c.RemoteParticipants[key] = p
	c.RemoteParticipantsEnded = c.RemoteParticipantsEnded.Delete(key)
	d.parts[participantRef{callID: callID, key: key}] = true
	return true
}

// EndParticipant moves a participant into the call's ended map.
func (d *Draft) EndParticipant(callID, key string, reason *domain.EndReason) bool {
	p := d.Participant(callID, key)
	if p == nil {
		return false
	}
	c := d.Call(callID)
	if reason != nil {
		r := *reason
		p.EndReason = &r
	}
	delete(c.RemoteParticipants, key)
	c.RemoteParticipantsEnded = c.RemoteParticipantsEnded.Put(key, p)
	if c.ScreenShareRemoteParticipant == key {
		c.ScreenShareRemoteParticipant = ""
	}
	return true
}

// RemoteStream returns a mutable copy of a participant stream.
func (d *Draft) RemoteStream(callID, key string, id int) *domain.RemoteVideoStream {
	p := d.Participant(callID, key)
	if p == nil {
		return nil
	}
	s, ok := p.VideoStreams[id]
	if !ok {
		return nil
	}
	ref := streamRef{callID: callID, owner: key, id: id}
	if !d.streams[ref] {
		cp := *s
		s = &cp
		p.VideoStreams[id] = s
		d.streams[ref] = true
	}
	return s
}

// FeatureStream returns a mutable copy of a together mode stream.
func (d *Draft) FeatureStream(callID string, id int) *domain.RemoteVideoStream {
	c := d.Call(callID)
	if c == nil {
		return nil
	}
	s, ok := c.TogetherMode.Streams[id]
	if !ok {
		return nil
	}
	ref := streamRef{callID: callID, owner: "\x00feature", id: id}
	if !d.streams[ref] {
		cp := *s
		s = &cp
		c.TogetherMode.Streams[id] = s
		d.streams[ref] = true
	}
	return s
}

// LocalStream returns the call's local stream of type t. The slice
// element is already a copy owned by the draft.
func (d *Draft) LocalStream(callID string, t domain.MediaStreamType) *domain.LocalVideoStream {
	c := d.Call(callID)
	if c == nil {
		return nil
	}
	i := c.LocalStream(t)
	if i < 0 {
		return nil
	}
	return &c.LocalVideoStreams[i]
}

func (d *Draft) DeviceManager() *domain.DeviceManager { return &d.next.DeviceManager }

func (d *Draft) UnparentedView(key string) *domain.LocalVideoStream {
	v, ok := d.next.DeviceManager.UnparentedViews[key]
	if !ok {
		return nil
	}
	if !d.views[key] {
		cp := *v
		v = &cp
		d.next.DeviceManager.UnparentedViews[key] = v
		d.views[key] = true
	}
	return v
}

func (d *Draft) PutUnparentedView(v *domain.LocalVideoStream) {
	key := v.SourceKey()
	d.next.DeviceManager.UnparentedViews[key] = v
	d.views[key] = true
}

func (d *Draft) DeleteUnparentedView(key string) {
	delete(d.next.DeviceManager.UnparentedViews, key)
	delete(d.views, key)
}

func (d *Draft) PutIncomingCall(c *domain.IncomingCall) {
	d.next.IncomingCalls[c.ID] = c
	d.next.IncomingCallsEnded = d.next.IncomingCallsEnded.Delete(c.ID)
}

func (d *Draft) EndIncomingCall(id string, reason *domain.EndReason) bool {
	c, ok := d.next.IncomingCalls[id]
	if !ok {
		return false
	}
	cp := *c
	end := d.now
	cp.EndTime = &end
	if reason != nil {
		r := *reason
		cp.EndReason = &r
	}
	delete(d.next.IncomingCalls, id)
	d.next.IncomingCallsEnded = d.next.IncomingCallsEnded.Put(id, &cp)
	return true
}

// SetError overwrites the latest error for e.Target.
func (d *Draft) SetError(e *domain.CallError) {
	d.next.LatestErrors[e.Target] = e
}

func (d *Draft) SetAgent(a *domain.Agent) { d.next.Agent = a }
