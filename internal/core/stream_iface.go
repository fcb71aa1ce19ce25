package core

import (
	"context"

	"github.com/dkeye/callstate/internal/domain"
)

type MediaStream interface {
	MediaStreamType() domain.MediaStreamType
}

type LocalVideoStream interface {
	MediaStream
	Source() domain.VideoDeviceInfo
	SwitchSource(ctx context.Context, source domain.VideoDeviceInfo) error
}

// RemoteVideoStream ids are only unique within one participant.
type RemoteVideoStream interface {
	MediaStream
	ID() int
	IsAvailable() bool
	OnIsAvailableChanged(func()) Off
}

type ViewOptions struct {
	ScalingMode domain.ScalingMode
	IsMirrored  bool
}

// RendererFactory creates a renderer bound to one stream.
type RendererFactory interface {
	NewRenderer(stream MediaStream) (Renderer, error)
}

// Renderer owns decode resources until Dispose. CreateView may block for
// a long time and is not preemptible beyond ctx.
type Renderer interface {
	CreateView(ctx context.Context, opts ViewOptions) (View, error)
	Dispose()
}

type View interface {
	Target() string
	ScalingMode() domain.ScalingMode
	IsMirrored() bool
}
