package subs

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/callstate/internal/adapters/memsdk"
	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/app/orch"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/stretchr/testify/require"
)

var me = domain.CommunicationUser("me")

type env struct {
	deps      *Deps
	renderers *memsdk.RendererFactory
	agent     *memsdk.Agent
	sub       *AgentSubscriber
}

func newEnv(t *testing.T) *env {
	t.Helper()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := app.NewStore(me, domain.DefaultCapacities(), app.WithClock(func() time.Time { return now }))
	registry := app.NewRegistry()
	history := app.NewIDHistory(nil)
	renderers := memsdk.NewRendererFactory()
	o := &orch.Orchestrator{Store: store, Registry: registry, History: history, Renderers: renderers}
	deps := &Deps{Store: store, Registry: registry, History: history, Orch: o}

	agent := memsdk.NewAgent("Me")
	e := &env{deps: deps, renderers: renderers, agent: agent}
	e.sub = NewAgentSubscriber(deps, agent)
	t.Cleanup(e.sub.Unsubscribe)
	return e
}

func (e *env) state() *domain.State { return e.deps.Store.Current() }

func TestBasicCallLifecycle(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, "Me", e.state().Agent.DisplayName)

	call := memsdk.NewCall("abc", domain.Outgoing)
	e.agent.AddCall(call)

	st := e.state()
	require.Len(t, st.Calls, 1)
	require.Contains(t, st.Calls, "abc")
	require.Empty(t, st.Calls["abc"].RemoteParticipants)
	require.Equal(t, domain.Outgoing, st.Calls["abc"].Direction)

	e.agent.RemoveCall(call, domain.EndReason{Code: 1})

	st = e.state()
	require.Empty(t, st.Calls)
	require.Equal(t, 1, st.CallsEnded.Len())
	ended, ok := st.CallsEnded.Get("abc")
	require.True(t, ok)
	require.Equal(t, 1, ended.EndReason.Code)
	require.NotNil(t, ended.EndTime)
	require.Equal(t, domain.CallDisconnected, ended.State)
	require.Zero(t, e.sub.CallCount())
}

func TestExistingCallsAreSeeded(t *testing.T) {
	now := time.Now()
	store := app.NewStore(me, domain.DefaultCapacities(), app.WithClock(func() time.Time { return now }))
	registry, history := app.NewRegistry(), app.NewIDHistory(nil)
	deps := &Deps{Store: store, Registry: registry, History: history,
		Orch: &orch.Orchestrator{Store: store, Registry: registry, History: history, Renderers: memsdk.NewRendererFactory()}}

	agent := memsdk.NewAgent("Me")
	call := memsdk.NewCall("pre", domain.Incoming)
	p := memsdk.NewParticipant(domain.PhoneNumber("+1"), "Phone")
	p.AddStream(memsdk.NewRemoteStream(1, domain.MediaVideo, true))
	call.AddParticipant(p)
	call.AddLocalStream(memsdk.NewLocalStream(domain.VideoDeviceInfo{ID: "cam"}, domain.MediaVideo))
	agent.AddCall(call)

	sub := NewAgentSubscriber(deps, agent)
	defer sub.Unsubscribe()

	c := store.Current().Calls["pre"]
	require.NotNil(t, c)
	require.Len(t, c.LocalVideoStreams, 1)
	rp := c.RemoteParticipants["4:+1"]
	require.NotNil(t, rp)
	require.True(t, rp.VideoStreams[1].IsAvailable)
	require.Equal(t, now, c.StartTime)
}

func TestParticipantUpdates(t *testing.T) {
	e := newEnv(t)
	call := memsdk.NewCall("c1", domain.Outgoing)
	e.agent.AddCall(call)
	p := memsdk.NewParticipant(domain.CommunicationUser("bob"), "Bob")
	call.AddParticipant(p)

	p.SetState(domain.ParticipantConnected)
	p.SetMuted(true)
	p.SetSpeaking(true)
	p.SetDisplayName("Robert")
	s := memsdk.NewRemoteStream(3, domain.MediaVideo, false)
	p.AddStream(s)
	s.SetAvailable(true)

	rp := e.state().Calls["c1"].RemoteParticipants["bob"]
	require.Equal(t, domain.ParticipantConnected, rp.State)
	require.True(t, rp.IsMuted)
	require.True(t, rp.IsSpeaking)
	require.Equal(t, "Robert", rp.DisplayName)
	require.True(t, rp.VideoStreams[3].IsAvailable)

	p.RemoveStream(s)
	require.Empty(t, e.state().Calls["c1"].RemoteParticipants["bob"].VideoStreams)

	call.RemoveParticipant(p, domain.EndReason{Code: 0, Subcode: 5})
	c := e.state().Calls["c1"]
	require.Empty(t, c.RemoteParticipants)
	ended, ok := c.RemoteParticipantsEnded.Get("bob")
	require.True(t, ok)
	require.Equal(t, domain.ParticipantDisconnected, ended.State)
	require.Equal(t, 5, ended.EndReason.Subcode)
}

func TestCallFieldUpdates(t *testing.T) {
	e := newEnv(t)
	call := memsdk.NewCall("c1", domain.Outgoing)
	e.agent.AddCall(call)

	call.SetState(domain.CallConnected)
	call.SetMuted(true)
	call.SetScreenSharing(true)

	c := e.state().Calls["c1"]
	require.Equal(t, domain.CallConnected, c.State)
	require.True(t, c.IsMuted)
	require.True(t, c.IsScreenSharingOn)
	require.Equal(t, 0, c.LocalStream(domain.MediaScreenSharing))

	call.SetScreenSharing(false)
	c = e.state().Calls["c1"]
	require.False(t, c.IsScreenSharingOn)
	require.Empty(t, c.LocalVideoStreams)
}

func TestUnsubscribeDetachesEveryListener(t *testing.T) {
	e := newEnv(t)
	features := memsdk.NewFeatureSet()
	call := memsdk.NewCall("c1", domain.Outgoing)
	call.SetFeatures(features.Features())
	p := memsdk.NewParticipant(domain.CommunicationUser("bob"), "Bob")
	stream := memsdk.NewRemoteStream(1, domain.MediaVideo, true)
	p.AddStream(stream)
	e.agent.AddCall(call)
	call.AddParticipant(p)

	require.Positive(t, e.agent.ListenerCount())
	require.Positive(t, call.ListenerCount())
	require.Positive(t, p.ListenerCount())
	require.Positive(t, stream.ListenerCount())
	require.Positive(t, features.ListenerCount())
	before := e.state()

	e.sub.Unsubscribe()
	e.sub.Unsubscribe()

	require.Zero(t, e.agent.ListenerCount())
	require.Zero(t, call.ListenerCount())
	require.Zero(t, p.ListenerCount())
	require.Zero(t, stream.ListenerCount())
	require.Zero(t, features.ListenerCount())

	// detached subscribers no longer touch the snapshot
	call.SetMuted(true)
	require.Same(t, before, e.state())
}

func TestScreenShareFollowsAvailability(t *testing.T) {
	e := newEnv(t)
	call := memsdk.NewCall("c1", domain.Outgoing)
	e.agent.AddCall(call)

	p1 := memsdk.NewParticipant(domain.CommunicationUser("p1"), "")
	share := memsdk.NewRemoteStream(1, domain.MediaScreenSharing, true)
	p1.AddStream(share)
	call.AddParticipant(p1)
	require.Equal(t, "p1", e.state().Calls["c1"].ScreenShareRemoteParticipant)

	share.SetAvailable(false)
	require.Empty(t, e.state().Calls["c1"].ScreenShareRemoteParticipant)

	share.SetAvailable(true)
	require.Equal(t, "p1", e.state().Calls["c1"].ScreenShareRemoteParticipant)

	p1.RemoveStream(share)
	require.Empty(t, e.state().Calls["c1"].ScreenShareRemoteParticipant)
}

func TestUnrelatedScreenShareKeepsSharer(t *testing.T) {
	e := newEnv(t)
	call := memsdk.NewCall("c1", domain.Outgoing)
	e.agent.AddCall(call)

	p1 := memsdk.NewParticipant(domain.CommunicationUser("p1"), "")
	p1.AddStream(memsdk.NewRemoteStream(1, domain.MediaScreenSharing, true))
	call.AddParticipant(p1)

	p2 := memsdk.NewParticipant(domain.CommunicationUser("p2"), "")
	call.AddParticipant(p2)
	other := memsdk.NewRemoteStream(1, domain.MediaScreenSharing, false)
	p2.AddStream(other)
	other.SetAvailable(false)
	p2.RemoveStream(other)

	require.Equal(t, "p1", e.state().Calls["c1"].ScreenShareRemoteParticipant)
}

func TestRenameMovesCallAndRenders(t *testing.T) {
	e := newEnv(t)
	call := memsdk.NewCall("x", domain.Outgoing)
	call.AddLocalStream(memsdk.NewLocalStream(domain.VideoDeviceInfo{ID: "cam"}, domain.MediaVideo))
	e.agent.AddCall(call)
	cs, ok := e.sub.Call(call)
	require.True(t, ok)

	e.renderers.Block()
	done := make(chan error, 1)
	go func() {
		_, err := e.deps.Orch.StartLocal(context.Background(), "x", domain.MediaVideo, core.ViewOptions{})
		done <- err
	}()
	<-e.renderers.Entered()

	call.SetID("y")
	require.Equal(t, "y", cs.ID())
	require.Equal(t, "y", cs.Ref().Raw())

	e.renderers.Release()
	require.NoError(t, <-done)

	st := e.state()
	require.NotContains(t, st.Calls, "x")
	local := st.Calls["y"].LocalVideoStreams[0]
	require.Equal(t, domain.Rendered, local.RenderStatus)
	require.NotNil(t, local.View)
	require.Equal(t, domain.Rendered, e.deps.Orch.Status(app.LocalKey("x", domain.MediaVideo)))

	// participants joining after the rename land on the new id
	call.AddParticipant(memsdk.NewParticipant(domain.CommunicationUser("late"), ""))
	require.Contains(t, e.state().Calls["y"].RemoteParticipants, "late")

	e.agent.RemoveCall(call, domain.EndReason{})
	ended, ok := e.state().CallsEnded.Get("y")
	require.True(t, ok)
	require.Equal(t, domain.NotRendered, ended.LocalVideoStreams[0].RenderStatus)
	require.Zero(t, e.renderers.Active())
}

func TestRemovedParticipantStopsItsRenders(t *testing.T) {
	e := newEnv(t)
	call := memsdk.NewCall("c1", domain.Outgoing)
	e.agent.AddCall(call)
	p := memsdk.NewParticipant(domain.CommunicationUser("bob"), "")
	p.AddStream(memsdk.NewRemoteStream(1, domain.MediaVideo, true))
	call.AddParticipant(p)

	_, err := e.deps.Orch.StartRemote(context.Background(), "c1", "bob", 1, core.ViewOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, e.renderers.Active())

	call.RemoveParticipant(p, domain.EndReason{})
	require.Zero(t, e.renderers.Active())
	require.Empty(t, e.deps.Registry.Keys("c1"))
}

func TestRejoinedParticipantLeavesEndedHistory(t *testing.T) {
	e := newEnv(t)
	call := memsdk.NewCall("c1", domain.Outgoing)
	e.agent.AddCall(call)
	first := memsdk.NewParticipant(domain.CommunicationUser("bob"), "Bob")
	call.AddParticipant(first)
	call.RemoveParticipant(first, domain.EndReason{})
	require.True(t, e.state().Calls["c1"].RemoteParticipantsEnded.Has("bob"))

	call.AddParticipant(memsdk.NewParticipant(domain.CommunicationUser("bob"), "Bob"))
	c := e.state().Calls["c1"]
	require.Contains(t, c.RemoteParticipants, "bob")
	require.False(t, c.RemoteParticipantsEnded.Has("bob"))
}

func TestReaddedCallLeavesEndedHistory(t *testing.T) {
	e := newEnv(t)
	first := memsdk.NewCall("c1", domain.Outgoing)
	e.agent.AddCall(first)
	e.agent.RemoveCall(first, domain.EndReason{})
	require.True(t, e.state().CallsEnded.Has("c1"))

	e.agent.AddCall(memsdk.NewCall("c1", domain.Incoming))
	st := e.state()
	require.Contains(t, st.Calls, "c1")
	require.False(t, st.CallsEnded.Has("c1"))
}

func TestReannouncedParticipantDropsStaleRenders(t *testing.T) {
	e := newEnv(t)
	call := memsdk.NewCall("c1", domain.Outgoing)
	features := memsdk.NewFeatureSet()
	call.SetFeatures(features.Features())
	e.agent.AddCall(call)
	p := memsdk.NewParticipant(domain.CommunicationUser("bob"), "")
	p.AddStream(memsdk.NewRemoteStream(1, domain.MediaVideo, true))
	call.AddParticipant(p)
	features.RaiseHand.Raise(domain.CommunicationUser("bob"))

	_, err := e.deps.Orch.StartRemote(context.Background(), "c1", "bob", 1, core.ViewOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, e.renderers.Active())

	call.AddParticipant(p)
	bob := e.state().Calls["c1"].RemoteParticipants["bob"]
	s := bob.VideoStreams[1]
	require.Equal(t, domain.NotRendered, s.RenderStatus)
	require.Nil(t, s.View)
	require.Equal(t, domain.NotRendered, e.deps.Orch.Status(app.RemoteKey("c1", "bob", 1)))
	require.Zero(t, e.renderers.Active())
	require.NotNil(t, bob.RaisedHand)

	_, err = e.deps.Orch.StartRemote(context.Background(), "c1", "bob", 1, core.ViewOptions{})
	require.NoError(t, err)
	require.Equal(t, domain.Rendered, e.state().Calls["c1"].RemoteParticipants["bob"].VideoStreams[1].RenderStatus)
}

func TestRemovedLocalStreamStopsRender(t *testing.T) {
	e := newEnv(t)
	call := memsdk.NewCall("c1", domain.Outgoing)
	call.AddLocalStream(memsdk.NewLocalStream(domain.VideoDeviceInfo{ID: "cam1"}, domain.MediaVideo))
	e.agent.AddCall(call)

	_, err := e.deps.Orch.StartLocal(context.Background(), "c1", domain.MediaVideo, core.ViewOptions{})
	require.NoError(t, err)

	call.RemoveLocalStream(domain.MediaVideo)
	require.Empty(t, e.state().Calls["c1"].LocalVideoStreams)
	require.Zero(t, e.renderers.Active())
}

func TestIncomingCallLifecycle(t *testing.T) {
	e := newEnv(t)
	ic := memsdk.NewIncomingCall("in1", domain.CallerInfo{Identifier: domain.CommunicationUser("alice"), DisplayName: "Alice"})
	e.agent.Ring(ic)

	require.Contains(t, e.state().IncomingCalls, "in1")
	require.Equal(t, 1, e.sub.IncomingCount())

	require.NoError(t, ic.Reject(context.Background()))
	st := e.state()
	require.Empty(t, st.IncomingCalls)
	ended, ok := st.IncomingCallsEnded.Get("in1")
	require.True(t, ok)
	require.Equal(t, 603, ended.EndReason.Code)
	require.Zero(t, e.sub.IncomingCount())
}

func TestAcceptedIncomingCallBecomesCall(t *testing.T) {
	e := newEnv(t)
	ic := memsdk.NewIncomingCall("in2", domain.CallerInfo{Identifier: domain.CommunicationUser("alice")})
	e.agent.Ring(ic)

	_, err := ic.Accept(context.Background(), core.StartCallOptions{})
	require.NoError(t, err)

	st := e.state()
	require.Empty(t, st.IncomingCalls)
	require.True(t, st.IncomingCallsEnded.Has("in2"))
	require.Equal(t, domain.Incoming, st.Calls["in2"].Direction)
}

func TestDeviceManagerSubscriber(t *testing.T) {
	e := newEnv(t)
	dm := memsdk.NewDeviceManager()
	sub := NewDeviceManagerSubscriber(e.deps, dm)

	dm.AddCamera(domain.VideoDeviceInfo{ID: "cam1"})
	dm.AddCamera(domain.VideoDeviceInfo{ID: "cam2"})
	mic := domain.AudioDeviceInfo{ID: "mic1", DeviceType: domain.AudioMicrophone}
	dm.AddMicrophone(mic)
	dm.AddSpeaker(domain.AudioDeviceInfo{ID: "spk1", DeviceType: domain.AudioSpeaker})
	require.NoError(t, dm.SelectMicrophone(context.Background(), mic))

	m := e.state().DeviceManager
	require.True(t, m.IsSpeakerSelectionAvailable)
	require.Len(t, m.Cameras, 2)
	require.Len(t, m.Microphones, 1)
	require.Len(t, m.Speakers, 1)
	require.Equal(t, "mic1", m.SelectedMicrophone.ID)

	e.deps.Store.Apply(func(d *app.Draft) {
		cam := domain.VideoDeviceInfo{ID: "cam1"}
		d.DeviceManager().SelectedCamera = &cam
	})
	dm.RemoveCamera("cam1")
	m = e.state().DeviceManager
	require.Len(t, m.Cameras, 1)
	require.Nil(t, m.SelectedCamera)

	sub.Unsubscribe()
	sub.Unsubscribe()
	require.Zero(t, dm.ListenerCount())
}

func TestMergeDevices(t *testing.T) {
	id := func(s string) string { return s }
	list := []string{"a", "b"}
	out := mergeDevices(list, []string{"b", "c"}, []string{"a"}, id)
	require.Equal(t, []string{"b", "c"}, out)
	require.Equal(t, []string{"a", "b"}, list)
}
