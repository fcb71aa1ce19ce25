package orch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/callstate/internal/adapters/memsdk"
	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	orch      *Orchestrator
	store     *app.Store
	renderers *memsdk.RendererFactory
	local     *memsdk.LocalStream
	remote    *memsdk.RemoteStream
}

const peer = "peer"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := app.NewStore(domain.CommunicationUser("me"), domain.DefaultCapacities())
	f := &fixture{
		store:     store,
		renderers: memsdk.NewRendererFactory(),
		local:     memsdk.NewLocalStream(domain.VideoDeviceInfo{ID: "cam"}, domain.MediaVideo),
		remote:    memsdk.NewRemoteStream(1, domain.MediaVideo, true),
	}
	f.orch = &Orchestrator{
		Store:     store,
		Registry:  app.NewRegistry(),
		History:   app.NewIDHistory(nil),
		Renderers: f.renderers,
	}

	store.Apply(func(d *app.Draft) {
		c := domain.NewCall("c1", 10)
		c.LocalVideoStreams = []domain.LocalVideoStream{{Source: f.local.Source(), MediaStreamType: domain.MediaVideo, RenderStatus: domain.NotRendered}}
		d.PutCall(c)
		d.PutParticipant("c1", &domain.RemoteParticipant{
			Identifier: domain.CommunicationUser(peer),
			VideoStreams: map[int]*domain.RemoteVideoStream{
				1: {ID: 1, MediaStreamType: domain.MediaVideo, IsAvailable: true, RenderStatus: domain.NotRendered},
			},
		})
	})
	f.orch.Registry.Track(app.LocalKey("c1", domain.MediaVideo), f.local)
	f.orch.Registry.Track(app.RemoteKey("c1", peer, 1), f.remote)
	return f
}

func (f *fixture) remoteSnapshot() *domain.RemoteVideoStream {
	return f.store.Current().Calls["c1"].RemoteParticipants[peer].VideoStreams[1]
}

func TestStartRemoteRenders(t *testing.T) {
	f := newFixture(t)

	view, err := f.orch.StartRemote(context.Background(), "c1", peer, 1, core.ViewOptions{ScalingMode: domain.ScalingFit})
	require.NoError(t, err)
	require.NotNil(t, view)
	require.Equal(t, domain.ScalingFit, view.ScalingMode)

	s := f.remoteSnapshot()
	require.Equal(t, domain.Rendered, s.RenderStatus)
	require.Equal(t, view, s.View)
	require.Equal(t, domain.Rendered, f.orch.Status(app.RemoteKey("c1", peer, 1)))
}

func TestStartIsRefusedWhileRendered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.StartLocal(ctx, "c1", domain.MediaVideo, core.ViewOptions{})
	require.NoError(t, err)

	_, err = f.orch.StartLocal(ctx, "c1", domain.MediaVideo, core.ViewOptions{})
	require.ErrorIs(t, err, ErrAlreadyRendered)
	require.Equal(t, 1, f.renderers.Created())
	require.Equal(t, 1, f.renderers.MaxActiveFor(f.local))
}

func TestStartUntrackedUnit(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.StartRemote(context.Background(), "c1", peer, 9, core.ViewOptions{})
	require.ErrorIs(t, err, ErrStreamNotFound)
	require.Zero(t, f.renderers.Created())
}

func TestStopRendered(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.StartRemote(context.Background(), "c1", peer, 1, core.ViewOptions{})
	require.NoError(t, err)

	f.orch.StopRemote("c1", peer, 1)

	s := f.remoteSnapshot()
	require.Equal(t, domain.NotRendered, s.RenderStatus)
	require.Nil(t, s.View)
	require.Zero(t, f.renderers.Active())

	// stopping again is a no-op
	f.orch.StopRemote("c1", peer, 1)
	require.Zero(t, f.renderers.DoubleDisposals())
}

func TestStopDuringCreationDisposesOnce(t *testing.T) {
	f := newFixture(t)
	f.renderers.Block()

	type result struct {
		view *domain.View
		err  error
	}
	done := make(chan result, 1)
	go func() {
		v, err := f.orch.StartRemote(context.Background(), "c1", peer, 1, core.ViewOptions{})
		done <- result{v, err}
	}()
	<-f.renderers.Entered()
	require.Equal(t, domain.Rendering, f.remoteSnapshot().RenderStatus)

	f.orch.StopRemote("c1", peer, 1)
	require.Equal(t, domain.Stopping, f.orch.Status(app.RemoteKey("c1", peer, 1)))
	require.Equal(t, domain.Stopping, f.remoteSnapshot().RenderStatus)

	// a second start while stopping is refused
	_, err := f.orch.StartRemote(context.Background(), "c1", peer, 1, core.ViewOptions{})
	require.ErrorIs(t, err, ErrStopping)

	f.renderers.Release()
	res := <-done
	require.NoError(t, res.err)
	require.Nil(t, res.view)

	require.Equal(t, domain.NotRendered, f.remoteSnapshot().RenderStatus)
	require.Equal(t, 1, f.renderers.Disposed())
	require.Zero(t, f.renderers.Active())
	require.Zero(t, f.renderers.DoubleDisposals())
}

func TestStartDuringCreationIsRefused(t *testing.T) {
	f := newFixture(t)
	f.renderers.Block()
	done := make(chan error, 1)
	go func() {
		_, err := f.orch.StartLocal(context.Background(), "c1", domain.MediaVideo, core.ViewOptions{})
		done <- err
	}()
	<-f.renderers.Entered()

	_, err := f.orch.StartLocal(context.Background(), "c1", domain.MediaVideo, core.ViewOptions{})
	require.ErrorIs(t, err, ErrRenderInProgress)

	f.renderers.Release()
	require.NoError(t, <-done)
	require.Equal(t, 1, f.renderers.MaxActiveFor(f.local))
}

func TestFailedCreationReturnsToNotRendered(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("gpu lost")
	f.renderers.FailView(boom)

	view, err := f.orch.StartRemote(context.Background(), "c1", peer, 1, core.ViewOptions{})
	require.ErrorIs(t, err, boom)
	require.Nil(t, view)
	require.Equal(t, domain.NotRendered, f.remoteSnapshot().RenderStatus)
	require.Zero(t, f.renderers.Active())

	// the unit can be retried
	_, err = f.orch.StartRemote(context.Background(), "c1", peer, 1, core.ViewOptions{})
	require.NoError(t, err)
}

func TestFailedRendererConstruction(t *testing.T) {
	f := newFixture(t)
	f.renderers.FailNext(errors.New("no renderer"))

	_, err := f.orch.StartLocal(context.Background(), "c1", domain.MediaVideo, core.ViewOptions{})
	require.Error(t, err)
	require.Equal(t, domain.NotRendered, f.orch.Status(app.LocalKey("c1", domain.MediaVideo)))
}

func TestCreateTimeout(t *testing.T) {
	f := newFixture(t)
	f.orch.CreateTimeout = 20 * time.Millisecond
	f.renderers.Block()
	defer f.renderers.Release()

	_, err := f.orch.StartLocal(context.Background(), "c1", domain.MediaVideo, core.ViewOptions{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, domain.NotRendered, f.orch.Status(app.LocalKey("c1", domain.MediaVideo)))
	require.Zero(t, f.renderers.Active())
}

func TestStopAllStopsEveryUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.StartLocal(ctx, "c1", domain.MediaVideo, core.ViewOptions{})
	require.NoError(t, err)
	_, err = f.orch.StartRemote(ctx, "c1", peer, 1, core.ViewOptions{})
	require.NoError(t, err)
	preview := memsdk.NewLocalStream(domain.VideoDeviceInfo{ID: "cam2"}, domain.MediaVideo)
	_, err = f.orch.StartUnparented(ctx, preview, core.ViewOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, f.renderers.Active())

	require.NoError(t, f.orch.StopAll())
	require.Zero(t, f.renderers.Active())
	require.Empty(t, f.store.Current().DeviceManager.UnparentedViews)
}

func TestUnparentedEntryRemovedWhenStopped(t *testing.T) {
	f := newFixture(t)
	preview := memsdk.NewLocalStream(domain.VideoDeviceInfo{ID: "cam2"}, domain.MediaVideo)
	source := domain.SourceKey("cam2", domain.MediaVideo)

	view, err := f.orch.StartUnparented(context.Background(), preview, core.ViewOptions{IsMirrored: true})
	require.NoError(t, err)
	require.True(t, view.IsMirrored)
	v := f.store.Current().DeviceManager.UnparentedViews[source]
	require.NotNil(t, v)
	require.Equal(t, domain.Rendered, v.RenderStatus)

	f.orch.StopUnparented(source)
	require.NotContains(t, f.store.Current().DeviceManager.UnparentedViews, source)
	require.Empty(t, f.orch.Registry.Keys(""))
}

func TestRenamedCallKeepsRenders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.StartRemote(ctx, "c1", peer, 1, core.ViewOptions{})
	require.NoError(t, err)

	f.orch.RenameCall("c1", "c2")
	f.store.Apply(func(d *app.Draft) { d.RenameCall("c1", "c2") })

	require.Equal(t, domain.Rendered, f.orch.Status(app.RemoteKey("c1", peer, 1)))
	f.orch.StopRemote("c1", peer, 1)
	require.Zero(t, f.renderers.Active())
	require.Equal(t, domain.NotRendered, f.store.Current().Calls["c2"].RemoteParticipants[peer].VideoStreams[1].RenderStatus)
}

func TestRenameDuringCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.renderers.Block()
	type result struct {
		view *domain.View
		err  error
	}
	done := make(chan result, 1)
	go func() {
		v, err := f.orch.StartRemote(ctx, "c1", peer, 1, core.ViewOptions{})
		done <- result{v, err}
	}()
	<-f.renderers.Entered()

	// the snapshot still files the call under c1 when creation completes
	f.orch.RenameCall("c1", "c2")
	f.renderers.Release()
	res := <-done
	require.NoError(t, res.err)
	require.NotNil(t, res.view)
	require.Equal(t, 1, f.renderers.Active())
	require.Equal(t, domain.Rendered, f.orch.Status(app.RemoteKey("c2", peer, 1)))
	require.Equal(t, domain.Rendered, f.remoteSnapshot().RenderStatus)

	f.store.Apply(func(d *app.Draft) { d.RenameCall("c1", "c2") })
	s := f.store.Current().Calls["c2"].RemoteParticipants[peer].VideoStreams[1]
	require.Equal(t, domain.Rendered, s.RenderStatus)
	require.Equal(t, res.view, s.View)

	_, err := f.orch.StartRemote(ctx, "c2", peer, 1, core.ViewOptions{})
	require.ErrorIs(t, err, ErrAlreadyRendered)

	f.orch.StopRemote("c1", peer, 1)
	require.Zero(t, f.renderers.Active())
	require.Equal(t, domain.NotRendered, f.orch.Status(app.RemoteKey("c2", peer, 1)))
}

func TestForgetCallDropsUnits(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.StartLocal(context.Background(), "c1", domain.MediaVideo, core.ViewOptions{})
	require.NoError(t, err)

	require.NoError(t, f.orch.ForgetCall("c1"))
	require.Zero(t, f.renderers.Active())
	require.Empty(t, f.orch.Registry.CallIDs())
}

func TestForgetDuringCreation(t *testing.T) {
	f := newFixture(t)
	f.renderers.Block()
	done := make(chan error, 1)
	go func() {
		_, err := f.orch.StartRemote(context.Background(), "c1", peer, 1, core.ViewOptions{})
		done <- err
	}()
	<-f.renderers.Entered()

	f.orch.Forget(app.RemoteKey("c1", peer, 1))
	f.renderers.Release()
	require.NoError(t, <-done)
	require.Zero(t, f.renderers.Active())
	require.Zero(t, f.renderers.DoubleDisposals())
}
