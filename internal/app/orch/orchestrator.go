// Package orch drives the render state machine of every render unit:
//
//	NotRendered -> Rendering -> Rendered -> Stopping -> NotRendered
//
// View creation is slow and cannot be interrupted, so a stop issued while
// a view is being created only marks the unit Stopping; the creating
// goroutine honours the mark once the renderer returns.
package orch

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
)

var (
	ErrStreamNotFound   = errors.New("render unit not found")
	ErrRenderInProgress = errors.New("render already in progress")
	ErrAlreadyRendered  = errors.New("already rendered")
	ErrStopping         = errors.New("render is stopping")
)

const TogetherMode = "togetherMode"

type Orchestrator struct {
	Store     *app.Store
	Registry  *app.Registry
	History   *app.IDHistory
	Renderers core.RendererFactory
	Recorder  app.Recorder

	// CreateTimeout bounds view creation when positive. Zero waits for
	// the renderer indefinitely.
	CreateTimeout time.Duration

	// renameMu makes a rename atomic for every resolve-then-update on the
	// registry.
	renameMu sync.RWMutex
}

func (o *Orchestrator) recorder() app.Recorder {
	if o.Recorder == nil {
		return app.Nop{}
	}
	return o.Recorder
}

// resolve re-targets a call bound key at the call's current id.
func (o *Orchestrator) resolve(k app.RenderKey) app.RenderKey {
	if !k.CallBound() || o.History == nil {
		return k
	}
	return k.WithCall(o.History.Resolve(k.CallID))
}

// RenameCall records oldID -> newID and moves the call's render units.
// No start, stop or completion observes the history and the registry out
// of step.
func (o *Orchestrator) RenameCall(oldID, newID string) {
	o.renameMu.Lock()
	defer o.renameMu.Unlock()
	if o.History != nil {
		o.History.Record(newID, oldID)
	}
	o.Registry.RenameCall(oldID, newID)
}

// update resolves k and edits its registry entry under the rename lock.
// It returns the resolved key.
func (o *Orchestrator) update(k app.RenderKey, fn func(*app.RenderInfo)) (app.RenderKey, bool) {
	o.renameMu.RLock()
	defer o.renameMu.RUnlock()
	k = o.resolve(k)
	return k, o.Registry.Update(k, fn)
}

func (o *Orchestrator) remove(k app.RenderKey) {
	o.renameMu.RLock()
	defer o.renameMu.RUnlock()
	o.Registry.Remove(o.resolve(k))
}

// Status reports the render state of a unit; unknown units are NotRendered.
func (o *Orchestrator) Status(k app.RenderKey) domain.RenderStatus {
	o.renameMu.RLock()
	defer o.renameMu.RUnlock()
	info, ok := o.Registry.Get(o.resolve(k))
	if !ok {
		return domain.NotRendered
	}
	return info.Status
}

// draftKey resolves k against the draft. Between a recorded rename and
// the snapshot rename the call is still filed under an earlier id of the
// chain; the transition is written there and travels with the rename.
func (o *Orchestrator) draftKey(d *app.Draft, k app.RenderKey) app.RenderKey {
	k = o.resolve(k)
	if !k.CallBound() || o.History == nil {
		return k
	}
	calls := d.State().Calls
	if _, ok := calls[k.CallID]; ok {
		return k
	}
	for id := range calls {
		if o.History.Resolve(id) == k.CallID {
			return k.WithCall(id)
		}
	}
	return k
}

// publish mirrors a transition into the snapshot. Units whose entity has
// left the snapshot are skipped.
func (o *Orchestrator) publish(k app.RenderKey, status domain.RenderStatus, view *domain.View) {
	o.recorder().RenderTransition(status)
	o.Store.Apply(func(d *app.Draft) {
		k := o.draftKey(d, k)
		switch k.Kind {
		case app.RenderLocal:
			if s := d.LocalStream(k.CallID, k.MediaType); s != nil {
				s.RenderStatus = status
				s.View = view
			}
		case app.RenderRemote:
			if s := d.RemoteStream(k.CallID, k.Owner, k.StreamID); s != nil {
				s.RenderStatus = status
				s.View = view
			}
		case app.RenderFeature:
			if s := d.FeatureStream(k.CallID, k.StreamID); s != nil {
				s.RenderStatus = status
				s.View = view
			}
		case app.RenderUnparented:
			if status == domain.NotRendered {
				d.DeleteUnparentedView(k.Source)
				return
			}
			if s := d.UnparentedView(k.Source); s != nil {
				s.RenderStatus = status
				s.View = view
			}
		}
	})
}

func toView(v core.View) *domain.View {
	return &domain.View{
		Target:      v.Target(),
		ScalingMode: v.ScalingMode(),
		IsMirrored:  v.IsMirrored(),
	}
}
