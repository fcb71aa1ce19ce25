package facade

import (
	"context"

	"github.com/dkeye/callstate/internal/core"
)

// CallProxy is a core.Call whose operations report failures into the
// snapshot.
type CallProxy struct {
	core.Call
	client *StatefulClient
}

func (c *StatefulClient) wrapCall(call core.Call) core.Call {
	if call == nil {
		return nil
	}
	if p, ok := call.(*CallProxy); ok {
		return p
	}
	return &CallProxy{Call: call, client: c}
}

// Unwrap returns the SDK call.
func (p *CallProxy) Unwrap() core.Call { return p.Call }

func (p *CallProxy) Mute(ctx context.Context) error {
	return p.client.capture(TargetMute, p.Call.Mute(ctx))
}

func (p *CallProxy) Unmute(ctx context.Context) error {
	return p.client.capture(TargetUnmute, p.Call.Unmute(ctx))
}

func (p *CallProxy) StartVideo(ctx context.Context, stream core.LocalVideoStream) error {
	return p.client.capture(TargetStartVideo, p.Call.StartVideo(ctx, unwrapStream(stream)))
}

// StopVideo also stops the local render of the stream, which the SDK
// does not do on its own.
func (p *CallProxy) StopVideo(ctx context.Context, stream core.LocalVideoStream) error {
	if err := p.Call.StopVideo(ctx, unwrapStream(stream)); err != nil {
		return p.client.capture(TargetStopVideo, err)
	}
	p.client.orch.StopLocal(p.client.resolve(p.Call.ID()), stream.MediaStreamType())
	return nil
}

func (p *CallProxy) StartScreenSharing(ctx context.Context) error {
	return p.client.capture(TargetStartScreenSharing, p.Call.StartScreenSharing(ctx))
}

func (p *CallProxy) StopScreenSharing(ctx context.Context) error {
	return p.client.capture(TargetStopScreenSharing, p.Call.StopScreenSharing(ctx))
}

func (p *CallProxy) Hold(ctx context.Context) error {
	return p.client.capture(TargetHold, p.Call.Hold(ctx))
}

func (p *CallProxy) Resume(ctx context.Context) error {
	return p.client.capture(TargetResume, p.Call.Resume(ctx))
}

func (p *CallProxy) HangUp(ctx context.Context, forEveryone bool) error {
	return p.client.capture(TargetHangUp, p.Call.HangUp(ctx, forEveryone))
}

// unwrapStream hands the SDK its own stream back when the consumer passes
// a wrapped one.
func unwrapStream(s core.LocalVideoStream) core.LocalVideoStream {
	if w, ok := s.(interface{ Unwrap() core.LocalVideoStream }); ok {
		return w.Unwrap()
	}
	return s
}
