package facade

import (
	"context"

	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
)

// AgentProxy is a core.CallAgent whose calls come back as CallProxy.
type AgentProxy struct {
	core.CallAgent
	client *StatefulClient
}

func (a *AgentProxy) Calls() []core.Call {
	calls := a.CallAgent.Calls()
	out := make([]core.Call, 0, len(calls))
	for _, c := range calls {
		out = append(out, a.client.wrapCall(c))
	}
	return out
}

func (a *AgentProxy) StartCall(ctx context.Context, participants []domain.Identifier, opts core.StartCallOptions) (core.Call, error) {
	call, err := a.CallAgent.StartCall(ctx, participants, unwrapOptions(opts))
	if err != nil {
		return nil, a.client.capture(TargetStartCall, err)
	}
	return a.client.wrapCall(call), nil
}

func (a *AgentProxy) Join(ctx context.Context, locator core.Locator, opts core.StartCallOptions) (core.Call, error) {
	call, err := a.CallAgent.Join(ctx, locator, unwrapOptions(opts))
	if err != nil {
		return nil, a.client.capture(TargetJoin, err)
	}
	return a.client.wrapCall(call), nil
}

// Dispose releases the agent through the client, which also stops renders
// and detaches subscribers.
func (a *AgentProxy) Dispose(ctx context.Context) error {
	return a.client.Dispose(ctx)
}

// OnCallsUpdated reports calls wrapped in CallProxy.
func (a *AgentProxy) OnCallsUpdated(fn func(core.CallsUpdated)) core.Off {
	return a.CallAgent.OnCallsUpdated(func(ev core.CallsUpdated) {
		wrapped := core.CallsUpdated{}
		for _, c := range ev.Added {
			wrapped.Added = append(wrapped.Added, a.client.wrapCall(c))
		}
		for _, c := range ev.Removed {
			wrapped.Removed = append(wrapped.Removed, a.client.wrapCall(c))
		}
		fn(wrapped)
	})
}

// OnIncomingCall hands out incoming calls wrapped in IncomingCallProxy.
func (a *AgentProxy) OnIncomingCall(fn func(core.IncomingCall)) core.Off {
	return a.CallAgent.OnIncomingCall(func(ic core.IncomingCall) {
		fn(&IncomingCallProxy{IncomingCall: ic, client: a.client})
	})
}

type IncomingCallProxy struct {
	core.IncomingCall
	client *StatefulClient
}

func (p *IncomingCallProxy) Accept(ctx context.Context, opts core.StartCallOptions) (core.Call, error) {
	call, err := p.IncomingCall.Accept(ctx, unwrapOptions(opts))
	if err != nil {
		return nil, p.client.capture(TargetAccept, err)
	}
	return p.client.wrapCall(call), nil
}

func (p *IncomingCallProxy) Reject(ctx context.Context) error {
	return p.client.capture(TargetReject, p.IncomingCall.Reject(ctx))
}

func unwrapOptions(opts core.StartCallOptions) core.StartCallOptions {
	streams := make([]core.LocalVideoStream, 0, len(opts.VideoStreams))
	for _, s := range opts.VideoStreams {
		streams = append(streams, unwrapStream(s))
	}
	opts.VideoStreams = streams
	return opts
}
