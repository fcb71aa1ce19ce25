package orch

import (
	"fmt"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

func (o *Orchestrator) StopLocal(callID string, t domain.MediaStreamType) {
	o.stop(app.LocalKey(callID, t))
}

func (o *Orchestrator) StopRemote(callID, participant string, streamID int) {
	o.stop(app.RemoteKey(callID, participant, streamID))
}

func (o *Orchestrator) StopFeature(callID, feature string, streamID int) {
	o.stop(app.FeatureKey(callID, feature, streamID))
}

func (o *Orchestrator) StopUnparented(source string) {
	o.stop(app.UnparentedKey(source))
}

// Stop is allowed from every state. Rendering becomes Stopping and the
// creating goroutine disposes the renderer; Rendered disposes right away.
func (o *Orchestrator) Stop(key app.RenderKey) { o.stop(key) }

func (o *Orchestrator) stop(key app.RenderKey) {
	var (
		renderer core.Renderer
		attempt  uint64
		marked   bool
	)
	key, _ = o.update(key, func(info *app.RenderInfo) {
		switch info.Status {
		case domain.Rendering:
			info.Status = domain.Stopping
			marked = true
		case domain.Rendered:
			// Stopping guards the renderer from a second stop until it is
			// disposed below.
			info.Status = domain.Stopping
			renderer = info.Renderer
			attempt = info.Attempt
		}
	})
	logger := log.With().Str("module", "orch").Str("key", key.String()).Logger()

	if marked {
		o.publish(key, domain.Stopping, nil)
		logger.Info().Msg("stop requested during creation")
		return
	}
	if renderer == nil {
		return
	}

	renderer.Dispose()
	key, _ = o.update(key, func(info *app.RenderInfo) {
		if info.Attempt == attempt && info.Status == domain.Stopping {
			info.Status = domain.NotRendered
			info.Renderer = nil
		}
	})
	if !key.CallBound() {
		o.Registry.Remove(key)
	}
	o.publish(key, domain.NotRendered, nil)
	logger.Info().Msg("render stopped")
}

// safeStop turns a panicking Dispose into an error so that bulk stops
// still visit every unit.
func (o *Orchestrator) safeStop(key app.RenderKey) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stop %s: %v", key, r)
		}
	}()
	o.stop(key)
	return nil
}

// StopAllForCall stops every unit of the call.
func (o *Orchestrator) StopAllForCall(callID string) error {
	var errs error
	for _, k := range o.callKeys(callID) {
		errs = multierr.Append(errs, o.safeStop(k))
	}
	return errs
}

// StopAll stops every unit, call bound or not.
func (o *Orchestrator) StopAll() error {
	var errs error
	for _, callID := range o.Registry.CallIDs() {
		errs = multierr.Append(errs, o.StopAllForCall(callID))
	}
	for _, k := range o.Registry.Keys("") {
		errs = multierr.Append(errs, o.safeStop(k))
	}
	return errs
}

// Forget stops a unit and drops it from the registry, for streams that
// left the call.
func (o *Orchestrator) Forget(key app.RenderKey) {
	o.stop(key)
	o.remove(key)
}

// ForgetCall stops every unit of a call and drops the call's entries.
func (o *Orchestrator) ForgetCall(callID string) error {
	err := o.StopAllForCall(callID)
	o.renameMu.RLock()
	defer o.renameMu.RUnlock()
	if o.History != nil {
		callID = o.History.Resolve(callID)
	}
	o.Registry.DropCall(callID)
	return err
}

func (o *Orchestrator) callKeys(callID string) []app.RenderKey {
	o.renameMu.RLock()
	defer o.renameMu.RUnlock()
	if o.History != nil {
		callID = o.History.Resolve(callID)
	}
	return o.Registry.Keys(callID)
}
