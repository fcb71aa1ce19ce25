// Package demo drives the in-memory SDK through a scripted call so the
// state inspector has something to show without a real calling backend.
package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/callstate/internal/adapters/memsdk"
	"github.com/dkeye/callstate/internal/adapters/rtc"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Views is the part of the stateful client the driver renders through.
type Views interface {
	CreateRemoteView(ctx context.Context, callID, participant string, streamID int, opts core.ViewOptions) (*domain.View, error)
}

type phase int

const (
	phaseStart phase = iota
	phaseRender
	phaseScreenShare
	phaseRename
	phaseLeave
	phaseEnd
	phaseCount
)

// Driver plays one scripted call per phaseCount steps: start, render a
// remote stream, share a screen, rename the call, let participants leave
// and end the call.
type Driver struct {
	sdk   *memsdk.Client
	views Views
	log   zerolog.Logger

	round  int
	next   phase
	call   *memsdk.Call
	remote *memsdk.Participant
	screen *memsdk.RemoteStream
	peer   *rtc.PeerParticipant
}

func NewDriver(sdk *memsdk.Client, views Views) *Driver {
	return &Driver{
		sdk:   sdk,
		views: views,
		log:   log.With().Str("module", "demo").Logger(),
	}
}

// Run steps the driver every interval until ctx is done.
func (d *Driver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer d.closePeer()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.Step(ctx); err != nil {
				d.log.Warn().Err(err).Msg("demo step failed")
			}
		}
	}
}

// Step advances the script by one phase.
func (d *Driver) Step(ctx context.Context) error {
	agent := d.sdk.Agent()
	if agent == nil {
		return fmt.Errorf("demo: no call agent")
	}
	p := d.next
	d.next = (d.next + 1) % phaseCount
	d.log.Debug().Int("round", d.round).Int("phase", int(p)).Msg("step")

	switch p {
	case phaseStart:
		return d.start(agent)
	case phaseRender:
		_, err := d.views.CreateRemoteView(ctx, d.call.ID(), d.remote.Identifier().Key(), 1, core.ViewOptions{ScalingMode: domain.ScalingCrop})
		return err
	case phaseScreenShare:
		d.screen = memsdk.NewRemoteStream(2, domain.MediaScreenSharing, true)
		d.remote.AddStream(d.screen)
		d.remote.SetSpeaking(true)
	case phaseRename:
		d.call.SetID(fmt.Sprintf("demo-%d-%s", d.round, uuid.NewString()[:8]))
	case phaseLeave:
		d.screen.SetAvailable(false)
		d.call.RemoveParticipant(d.remote, domain.EndReason{})
		if d.peer != nil {
			d.peer.Close()
			d.call.RemoveParticipant(d.peer, domain.EndReason{})
			d.peer = nil
		}
	case phaseEnd:
		agent.RemoveCall(d.call, domain.EndReason{})
		d.log.Info().Int("round", d.round).Str("call_id", d.call.ID()).Msg("demo call ended")
		d.round++
		d.call, d.remote, d.screen = nil, nil, nil
	}
	return nil
}

func (d *Driver) start(agent *memsdk.Agent) error {
	call := memsdk.NewCall(uuid.NewString(), domain.Outgoing)
	call.SetFeatures(memsdk.NewFeatureSet().Features())
	call.AddLocalStream(memsdk.NewLocalStream(domain.VideoDeviceInfo{ID: "demo-cam", Name: "Demo camera"}, domain.MediaVideo))

	remote := memsdk.NewParticipant(domain.CommunicationUser(fmt.Sprintf("guest-%d", d.round)), "Guest")
	remote.SetState(domain.ParticipantConnected)
	remote.AddStream(memsdk.NewRemoteStream(1, domain.MediaVideo, true))

	agent.AddCall(call)
	call.SetState(domain.CallConnected)
	call.AddParticipant(remote)

	peer, err := rtc.NewPeerParticipant(webrtc.Configuration{}, domain.CommunicationUser(fmt.Sprintf("peer-%d", d.round)), "WebRTC peer")
	if err != nil {
		d.log.Warn().Err(err).Msg("peer participant unavailable")
	} else {
		call.AddParticipant(peer)
		d.peer = peer
	}

	d.call, d.remote = call, remote
	d.log.Info().Int("round", d.round).Str("call_id", call.ID()).Msg("demo call started")
	return nil
}

func (d *Driver) closePeer() {
	if d.peer != nil {
		d.peer.Close()
		d.peer = nil
	}
}
