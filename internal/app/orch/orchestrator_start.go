package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/rs/zerolog/log"
)

// StartLocal renders the call's local stream of type t.
func (o *Orchestrator) StartLocal(ctx context.Context, callID string, t domain.MediaStreamType, opts core.ViewOptions) (*domain.View, error) {
	return o.start(ctx, app.LocalKey(callID, t), opts)
}

// StartRemote renders stream streamID of participant in call callID.
func (o *Orchestrator) StartRemote(ctx context.Context, callID, participant string, streamID int, opts core.ViewOptions) (*domain.View, error) {
	return o.start(ctx, app.RemoteKey(callID, participant, streamID), opts)
}

// StartFeature renders a stream owned by a call feature such as together mode.
func (o *Orchestrator) StartFeature(ctx context.Context, callID, feature string, streamID int, opts core.ViewOptions) (*domain.View, error) {
	return o.start(ctx, app.FeatureKey(callID, feature, streamID), opts)
}

// StartUnparented renders a local preview that belongs to no call.
func (o *Orchestrator) StartUnparented(ctx context.Context, stream core.LocalVideoStream, opts core.ViewOptions) (*domain.View, error) {
	source := domain.SourceKey(stream.Source().ID, stream.MediaStreamType())
	key := app.UnparentedKey(source)
	o.Registry.Track(key, stream)
	o.Store.Apply(func(d *app.Draft) {
		if d.UnparentedView(source) == nil {
			d.PutUnparentedView(&domain.LocalVideoStream{
				Source:          stream.Source(),
				MediaStreamType: stream.MediaStreamType(),
				RenderStatus:    domain.NotRendered,
			})
		}
	})
	return o.start(ctx, key, opts)
}

// start moves a unit from NotRendered to Rendering and creates its view.
// A nil view with a nil error means the unit was stopped, or removed,
// while the view was being created.
func (o *Orchestrator) start(ctx context.Context, key app.RenderKey, opts core.ViewOptions) (*domain.View, error) {
	key = o.resolve(key)
	logger := log.With().Str("module", "orch").Str("key", key.String()).Logger()

	attempt := o.Registry.NextAttempt()
	var (
		stream core.MediaStream
		denied error
	)
	key, found := o.update(key, func(info *app.RenderInfo) {
		switch info.Status {
		case domain.Rendering:
			denied = ErrRenderInProgress
		case domain.Rendered:
			denied = ErrAlreadyRendered
		case domain.Stopping:
			denied = ErrStopping
		default:
			info.Status = domain.Rendering
			info.Attempt = attempt
			stream = info.Stream
		}
	})
	if !found {
		logger.Warn().Msg("start: unit not tracked")
		return nil, fmt.Errorf("start %s: %w", key, ErrStreamNotFound)
	}
	if denied != nil {
		logger.Warn().Err(denied).Msg("start refused")
		return nil, fmt.Errorf("start %s: %w", key, denied)
	}
	o.publish(key, domain.Rendering, nil)

	renderer, view, err := o.create(ctx, stream, opts)
	if err != nil {
		logger.Warn().Err(err).Msg("view creation failed")
		o.recorder().RenderFailed()
		o.abandon(key, attempt)
		return nil, fmt.Errorf("create view %s: %w", key, err)
	}
	return o.complete(key, attempt, renderer, view)
}

func (o *Orchestrator) create(ctx context.Context, stream core.MediaStream, opts core.ViewOptions) (core.Renderer, core.View, error) {
	renderer, err := o.Renderers.NewRenderer(stream)
	if err != nil {
		return nil, nil, err
	}
	if o.CreateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.CreateTimeout)
		defer cancel()
	}
	view, err := renderer.CreateView(ctx, opts)
	if err != nil {
		renderer.Dispose()
		return nil, nil, err
	}
	return renderer, view, nil
}

// abandon returns a unit to NotRendered after a failed creation.
func (o *Orchestrator) abandon(key app.RenderKey, attempt uint64) {
	reset := false
	key, _ = o.update(key, func(info *app.RenderInfo) {
		if info.Attempt != attempt {
			return
		}
		if info.Status == domain.Rendering || info.Status == domain.Stopping {
			info.Status = domain.NotRendered
			info.Renderer = nil
			reset = true
		}
	})
	if !reset {
		return
	}
	if !key.CallBound() {
		o.Registry.Remove(key)
	}
	o.publish(key, domain.NotRendered, nil)
}

type outcome int

const (
	orphaned outcome = iota
	rendered
	cancelled
)

// complete re-validates the unit after creation returned. The registry
// may have changed arbitrarily while the renderer was working.
func (o *Orchestrator) complete(key app.RenderKey, attempt uint64, renderer core.Renderer, view core.View) (*domain.View, error) {
	result := orphaned
	key, _ = o.update(key, func(info *app.RenderInfo) {
		if info.Attempt != attempt {
			return
		}
		switch info.Status {
		case domain.Rendering:
			info.Status = domain.Rendered
			info.Renderer = renderer
			result = rendered
		case domain.Stopping:
			info.Status = domain.NotRendered
			info.Renderer = nil
			result = cancelled
		}
	})
	logger := log.With().Str("module", "orch").Str("key", key.String()).Logger()

	switch result {
	case rendered:
		v := toView(view)
		o.publish(key, domain.Rendered, v)
		logger.Info().Str("target", v.Target).Msg("rendered")
		return v, nil
	case cancelled:
		renderer.Dispose()
		if !key.CallBound() {
			o.Registry.Remove(key)
		}
		o.publish(key, domain.NotRendered, nil)
		logger.Info().Msg("stopped during creation, renderer disposed")
		return nil, nil
	default:
		renderer.Dispose()
		logger.Debug().Msg("unit vanished during creation, renderer disposed")
		return nil, nil
	}
}
