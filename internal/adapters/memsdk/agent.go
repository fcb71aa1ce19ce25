package memsdk

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/google/uuid"
)

type Agent struct {
	faults

	mu          sync.RWMutex
	displayName string
	calls       []*Call
	disposed    bool

	callsUpdated core.Topic[core.CallsUpdated]
	incoming     core.Topic[core.IncomingCall]
}

func NewAgent(displayName string) *Agent {
	return &Agent{displayName: displayName}
}

func (a *Agent) DisplayName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.displayName
}

func (a *Agent) Calls() []core.Call {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]core.Call, 0, len(a.calls))
	for _, c := range a.calls {
		out = append(out, c)
	}
	return out
}

func (a *Agent) Disposed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.disposed
}

func (a *Agent) StartCall(_ context.Context, participants []domain.Identifier, opts core.StartCallOptions) (core.Call, error) {
	if err := a.take("startCall"); err != nil {
		return nil, err
	}
	c := NewCall(uuid.NewString(), domain.Outgoing)
	c.muted = opts.Muted
	for _, s := range opts.VideoStreams {
		if ls, ok := s.(*LocalStream); ok {
			c.locals = append(c.locals, ls)
		}
	}
	c.state = domain.CallConnecting
	for _, id := range participants {
		c.participants = append(c.participants, NewParticipant(id, ""))
	}
	a.AddCall(c)
	return c, nil
}

func (a *Agent) Join(_ context.Context, locator core.Locator, opts core.StartCallOptions) (core.Call, error) {
	if err := a.take("join"); err != nil {
		return nil, err
	}
	id := locator.GroupID
	if id == "" {
		id = uuid.NewString()
	}
	c := NewCall(id, domain.Outgoing)
	c.muted = opts.Muted
	c.state = domain.CallConnecting
	a.AddCall(c)
	return c, nil
}

func (a *Agent) Dispose(context.Context) error {
	if err := a.take("dispose"); err != nil {
		return err
	}
	a.mu.Lock()
	a.disposed = true
	a.mu.Unlock()
	return nil
}

func (a *Agent) OnCallsUpdated(fn func(core.CallsUpdated)) core.Off { return a.callsUpdated.On(fn) }
func (a *Agent) OnIncomingCall(fn func(core.IncomingCall)) core.Off { return a.incoming.On(fn) }

// AddCall attaches c to the agent and emits callsUpdated.
func (a *Agent) AddCall(c *Call) {
	a.mu.Lock()
	a.calls = append(a.calls, c)
	a.mu.Unlock()
	c.setAgent(a)
	a.callsUpdated.Emit(core.CallsUpdated{Added: []core.Call{c}})
}

// RemoveCall disconnects the call with the given reason and emits
// callsUpdated.
func (a *Agent) RemoveCall(c *Call, reason domain.EndReason) {
	a.mu.Lock()
	i := slices.Index(a.calls, c)
	if i < 0 {
		a.mu.Unlock()
		return
	}
	a.calls = slices.Delete(a.calls, i, i+1)
	a.mu.Unlock()

	c.mu.Lock()
	c.state = domain.CallDisconnected
	c.endReason = &reason
	c.mu.Unlock()
	c.stateChanged.Emit(struct{}{})
	a.callsUpdated.Emit(core.CallsUpdated{Removed: []core.Call{c}})
}

// Ring delivers an incoming call.
func (a *Agent) Ring(ic *IncomingCall) {
	ic.agent = a
	a.incoming.Emit(ic)
}

func (a *Agent) ListenerCount() int {
	return a.callsUpdated.Len() + a.incoming.Len()
}

type IncomingCall struct {
	faults

	id     string
	caller domain.CallerInfo
	agent  *Agent
	ended  core.Topic[core.IncomingCallEnded]
}

func NewIncomingCall(id string, caller domain.CallerInfo) *IncomingCall {
	return &IncomingCall{id: id, caller: caller}
}

func (ic *IncomingCall) ID() string                    { return ic.id }
func (ic *IncomingCall) CallerInfo() domain.CallerInfo { return ic.caller }

func (ic *IncomingCall) Accept(_ context.Context, opts core.StartCallOptions) (core.Call, error) {
	if err := ic.take("accept"); err != nil {
		return nil, err
	}
	c := NewCall(ic.id, domain.Incoming)
	c.muted = opts.Muted
	c.state = domain.CallConnecting
	ic.End(domain.EndReason{})
	if ic.agent != nil {
		ic.agent.AddCall(c)
	}
	return c, nil
}

func (ic *IncomingCall) Reject(context.Context) error {
	if err := ic.take("reject"); err != nil {
		return err
	}
	ic.End(domain.EndReason{Code: 603})
	return nil
}

func (ic *IncomingCall) OnCallEnded(fn func(core.IncomingCallEnded)) core.Off { return ic.ended.On(fn) }

func (ic *IncomingCall) End(reason domain.EndReason) {
	ic.ended.Emit(core.IncomingCallEnded{EndReason: reason})
}
