// Package facade is the consumer entry point. StatefulClient builds the
// engine around an SDK client; the proxies wrap SDK objects so that every
// failed operation lands in the snapshot and is returned to the caller.
package facade

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/app/orch"
	"github.com/dkeye/callstate/internal/app/subs"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

type Options struct {
	UserID        domain.Identifier
	Capacities    domain.Capacities
	Renderers     core.RendererFactory
	Recorder      app.Recorder
	CreateTimeout time.Duration
	Clock         func() time.Time
}

type StatefulClient struct {
	client core.CallClient
	store  *app.Store
	orch   *orch.Orchestrator
	deps   *subs.Deps
	rec    app.Recorder
	stats  app.Subscription
	log    zerolog.Logger

	mu        sync.Mutex
	agent     *AgentProxy
	agentSub  *subs.AgentSubscriber
	devices   *DeviceManagerProxy
	deviceSub *subs.DeviceManagerSubscriber
}

func NewStatefulClient(client core.CallClient, opts Options) *StatefulClient {
	rec := opts.Recorder
	if rec == nil {
		rec = app.Nop{}
	}
	caps := opts.Capacities
	if caps == (domain.Capacities{}) {
		caps = domain.DefaultCapacities()
	}
	storeOpts := []app.StoreOption{}
	if opts.Clock != nil {
		storeOpts = append(storeOpts, app.WithClock(opts.Clock))
	}
	store := app.NewStore(opts.UserID, caps, storeOpts...)
	registry := app.NewRegistry()
	history := app.NewIDHistory(rec)
	o := &orch.Orchestrator{
		Store:         store,
		Registry:      registry,
		History:       history,
		Renderers:     opts.Renderers,
		Recorder:      rec,
		CreateTimeout: opts.CreateTimeout,
	}
	c := &StatefulClient{
		client: client,
		store:  store,
		orch:   o,
		deps:   &subs.Deps{Store: store, Registry: registry, History: history, Orch: o},
		rec:    rec,
		log:    log.With().Str("module", "facade").Logger(),
	}
	c.stats = store.Subscribe(rec.StateCommitted)
	return c
}

// State returns the latest snapshot. It must not be mutated.
func (c *StatefulClient) State() *domain.State { return c.store.Current() }

// Subscribe registers fn for every new snapshot.
func (c *StatefulClient) Subscribe(fn app.Observer) app.Subscription {
	return c.store.Subscribe(fn)
}

// CreateCallAgent creates the SDK agent and starts mirroring it.
func (c *StatefulClient) CreateCallAgent(ctx context.Context, opts core.CallAgentOptions) (*AgentProxy, error) {
	agent, err := c.client.CreateCallAgent(ctx, opts)
	if err != nil {
		return nil, c.capture(TargetCreateCallAgent, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.agentSub != nil {
		c.agentSub.Unsubscribe()
	}
	c.agentSub = subs.NewAgentSubscriber(c.deps, agent)
	c.agent = &AgentProxy{CallAgent: agent, client: c}
	c.log.Info().Str("display_name", opts.DisplayName).Msg("call agent created")
	return c.agent, nil
}

// DeviceManager returns the proxied device manager, subscribing to it on
// first use.
func (c *StatefulClient) DeviceManager(ctx context.Context) (*DeviceManagerProxy, error) {
	c.mu.Lock()
	if c.devices != nil {
		defer c.mu.Unlock()
		return c.devices, nil
	}
	c.mu.Unlock()

	dm, err := c.client.GetDeviceManager(ctx)
	if err != nil {
		return nil, c.capture(TargetGetDeviceManager, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.devices == nil {
		c.deviceSub = subs.NewDeviceManagerSubscriber(c.deps, dm)
		c.devices = &DeviceManagerProxy{DeviceManager: dm, client: c}
	}
	return c.devices, nil
}

func (c *StatefulClient) CreateLocalView(ctx context.Context, callID string, t domain.MediaStreamType, opts core.ViewOptions) (*domain.View, error) {
	return c.orch.StartLocal(ctx, callID, t, opts)
}

func (c *StatefulClient) CreateRemoteView(ctx context.Context, callID, participant string, streamID int, opts core.ViewOptions) (*domain.View, error) {
	return c.orch.StartRemote(ctx, callID, participant, streamID, opts)
}

func (c *StatefulClient) CreateFeatureView(ctx context.Context, callID, feature string, streamID int, opts core.ViewOptions) (*domain.View, error) {
	return c.orch.StartFeature(ctx, callID, feature, streamID, opts)
}

// CreateUnparentedView renders a preview of stream outside any call.
func (c *StatefulClient) CreateUnparentedView(ctx context.Context, stream core.LocalVideoStream, opts core.ViewOptions) (*domain.View, error) {
	return c.orch.StartUnparented(ctx, stream, opts)
}

func (c *StatefulClient) DisposeLocalView(callID string, t domain.MediaStreamType) {
	c.orch.StopLocal(callID, t)
}

func (c *StatefulClient) DisposeRemoteView(callID, participant string, streamID int) {
	c.orch.StopRemote(callID, participant, streamID)
}

func (c *StatefulClient) DisposeFeatureView(callID, feature string, streamID int) {
	c.orch.StopFeature(callID, feature, streamID)
}

func (c *StatefulClient) DisposeUnparentedView(stream core.LocalVideoStream) {
	c.orch.StopUnparented(domain.SourceKey(stream.Source().ID, stream.MediaStreamType()))
}

// DisposeAllViews stops every render unit, in calls and outside them.
func (c *StatefulClient) DisposeAllViews() error { return c.orch.StopAll() }

// Dispose stops all renders, detaches every subscriber and disposes the
// agent. The snapshot stays readable afterwards.
func (c *StatefulClient) Dispose(ctx context.Context) error {
	err := c.orch.StopAll()

	c.mu.Lock()
	agent, agentSub, deviceSub := c.agent, c.agentSub, c.deviceSub
	c.agent, c.agentSub, c.deviceSub, c.devices = nil, nil, nil, nil
	c.mu.Unlock()

	if agentSub != nil {
		agentSub.Unsubscribe()
	}
	if deviceSub != nil {
		deviceSub.Unsubscribe()
	}
	if agent != nil {
		if derr := agent.CallAgent.Dispose(ctx); derr != nil {
			err = multierr.Append(err, c.capture(TargetAgentDispose, derr))
		}
	}
	c.stats.Unsubscribe()
	return err
}

// capture records err under target and returns the recorded CallError.
func (c *StatefulClient) capture(target domain.ErrorTarget, err error) error {
	if err == nil {
		return nil
	}
	ce := domain.NewCallError(target, err, c.store.Now())
	var coded core.CodedError
	if errors.As(err, &coded) {
		ce = ce.WithCodes(coded.Code(), coded.Subcode())
	}
	c.store.Apply(func(d *app.Draft) { d.SetError(ce) })
	c.rec.OperationFailed(target)
	c.log.Warn().Err(err).Str("target", string(target)).Int("code", ce.Code).Msg("operation failed")
	return ce
}

// resolve maps a possibly stale call id to the current one.
func (c *StatefulClient) resolve(callID string) string { return c.deps.History.Resolve(callID) }
