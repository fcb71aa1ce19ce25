package subs

import (
	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/rs/zerolog"
)

// AgentSubscriber owns one CallSubscriber per live call and one
// IncomingCallSubscriber per ringing call.
type AgentSubscriber struct {
	deps     *Deps
	agent    core.CallAgent
	lis      listeners
	calls    children[core.Call, *CallSubscriber]
	incoming children[string, *IncomingCallSubscriber]
	log      zerolog.Logger
}

func NewAgentSubscriber(deps *Deps, agent core.CallAgent) *AgentSubscriber {
	s := &AgentSubscriber{
		deps:  deps,
		agent: agent,
		log:   logger("subs.agent"),
	}
	name := agent.DisplayName()
	deps.Store.Apply(func(d *app.Draft) {
		d.SetAgent(&domain.Agent{DisplayName: name})
	})
	for _, c := range agent.Calls() {
		s.addCall(c)
	}
	s.lis.add(
		agent.OnCallsUpdated(s.onCallsUpdated),
		agent.OnIncomingCall(s.addIncoming),
	)
	return s
}

func (s *AgentSubscriber) onCallsUpdated(ev core.CallsUpdated) {
	for _, c := range ev.Added {
		s.addCall(c)
	}
	for _, c := range ev.Removed {
		s.removeCall(c)
	}
}

func (s *AgentSubscriber) addCall(c core.Call) {
	id := c.ID()
	s.log.Info().Str("call_id", id).Msg("call added")
	s.calls.replace(c, func() *CallSubscriber {
		return NewCallSubscriber(s.deps, c)
	})
}

// removeCall stops the call's renders before the call is moved to the
// ended history, so the final snapshot shows no live view.
func (s *AgentSubscriber) removeCall(c core.Call) {
	id := s.deps.History.Resolve(c.ID())
	if sub, ok := s.calls.remove(c); ok {
		id = sub.ref.ID()
		sub.Unsubscribe()
	}
	if err := s.deps.Orch.ForgetCall(id); err != nil {
		s.log.Warn().Err(err).Str("call_id", id).Msg("stopping renders of removed call")
	}

	state, reason := c.State(), c.EndReason()
	s.deps.Store.Apply(func(d *app.Draft) {
		if cl := d.Call(id); cl != nil {
			cl.State = state
		}
		d.EndCall(id, reason)
	})
	ev := s.log.Info().Str("call_id", id)
	if reason != nil {
		ev = ev.Int("code", reason.Code).Int("subcode", reason.Subcode)
	}
	ev.Msg("call ended")
}

func (s *AgentSubscriber) addIncoming(ic core.IncomingCall) {
	id := ic.ID()
	s.incoming.replace(id, func() *IncomingCallSubscriber {
		return NewIncomingCallSubscriber(s.deps, ic, func() {
			if sub, ok := s.incoming.remove(id); ok {
				sub.Unsubscribe()
			}
		})
	})
}

// Call returns the subscriber of a live call.
func (s *AgentSubscriber) Call(c core.Call) (*CallSubscriber, bool) { return s.calls.get(c) }

func (s *AgentSubscriber) CallCount() int { return s.calls.len() }

func (s *AgentSubscriber) IncomingCount() int { return s.incoming.len() }

// Unsubscribe detaches every call and incoming call subscriber, then the
// agent's own listeners.
func (s *AgentSubscriber) Unsubscribe() {
	if s.lis.isClosed() {
		return
	}
	s.calls.closeAll()
	s.incoming.closeAll()
	s.lis.close()
}
