// Package rtc exposes a WebRTC peer as a remote participant: the peer's
// remote video tracks surface as remote video streams and the connection
// state as the participant state.
package rtc

import (
	"context"
	"strings"
	"sync"

	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// PeerParticipant implements core.RemoteParticipant on a PeerConnection.
type PeerParticipant struct {
	pc         *webrtc.PeerConnection
	identifier domain.Identifier
	cancel     context.CancelFunc
	onICE      func(webrtc.ICECandidateInit)

	mu          sync.RWMutex
	displayName string
	state       domain.ParticipantState
	endReason   *domain.EndReason
	audioTracks int
	streams     []*TrackStream
	byTrack     map[string]*TrackStream
	nextID      int

	stateChanged       core.Signal
	mutedChanged       core.Signal
	speakingChanged    core.Signal
	displayNameChanged core.Signal
	streamsUpdated     core.Topic[core.RemoteVideoStreamsUpdated]
}

func NewPeerParticipant(cfg webrtc.Configuration, id domain.Identifier, displayName string) (*PeerParticipant, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &PeerParticipant{
		pc:          pc,
		identifier:  id,
		displayName: displayName,
		state:       domain.ParticipantIdle,
		byTrack:     make(map[string]*TrackStream),
	}, nil
}

func (p *PeerParticipant) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	key := p.identifier.Key()

	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("participant", key).Str("peer_connection_state", s.String()).Msg("peer state")
		p.setState(participantState(s))
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			cancel()
		}
	})

	p.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && p.onICE != nil {
			p.onICE(cand.ToJSON())
		}
	})

	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("participant", key).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		done := p.trackStarted(track.Kind(), track.ID(), track.StreamID())
		go func() {
			for ctx.Err() == nil {
				if _, _, err := track.ReadRTP(); err != nil {
					break
				}
			}
			done()
		}()
	})
	return nil
}

// participantState maps a PeerConnection state onto a participant state.
func participantState(s webrtc.PeerConnectionState) domain.ParticipantState {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return domain.ParticipantIdle
	case webrtc.PeerConnectionStateConnecting:
		return domain.ParticipantConnecting
	case webrtc.PeerConnectionStateConnected:
		return domain.ParticipantConnected
	case webrtc.PeerConnectionStateDisconnected:
		return domain.ParticipantHold
	default:
		return domain.ParticipantDisconnected
	}
}

func (p *PeerParticipant) setState(s domain.ParticipantState) {
	p.mu.Lock()
	if p.state == s {
		p.mu.Unlock()
		return
	}
	p.state = s
	if s == domain.ParticipantDisconnected && p.endReason == nil {
		p.endReason = &domain.EndReason{}
	}
	p.mu.Unlock()
	p.stateChanged.Emit(struct{}{})
}

// trackStarted records a new remote track and returns the func to call
// once the track stops delivering packets.
func (p *PeerParticipant) trackStarted(kind webrtc.RTPCodecType, trackID, streamID string) func() {
	if kind == webrtc.RTPCodecTypeAudio {
		p.mu.Lock()
		p.audioTracks++
		unmuted := p.audioTracks == 1
		p.mu.Unlock()
		if unmuted {
			p.mutedChanged.Emit(struct{}{})
		}
		return func() {
			p.mu.Lock()
			p.audioTracks--
			muted := p.audioTracks == 0
			p.mu.Unlock()
			if muted {
				p.mutedChanged.Emit(struct{}{})
			}
		}
	}

	p.mu.Lock()
	s, ok := p.byTrack[trackID]
	if !ok {
		p.nextID++
		s = &TrackStream{id: p.nextID, trackID: trackID, kind: mediaType(streamID)}
		p.byTrack[trackID] = s
		p.streams = append(p.streams, s)
	}
	p.mu.Unlock()

	if !ok {
		p.streamsUpdated.Emit(core.RemoteVideoStreamsUpdated{Added: []core.RemoteVideoStream{s}})
	}
	s.setAvailable(true)
	return func() { s.setAvailable(false) }
}

// mediaType treats streams labelled as screen shares as such.
func mediaType(streamID string) domain.MediaStreamType {
	if strings.Contains(strings.ToLower(streamID), "screen") {
		return domain.MediaScreenSharing
	}
	return domain.MediaVideo
}

func (p *PeerParticipant) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete

	return p.pc.LocalDescription(), nil
}

func (p *PeerParticipant) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(ci)
}

func (p *PeerParticipant) OnICECandidate(fn func(webrtc.ICECandidateInit)) { p.onICE = fn }

// Close tears the connection down; the participant ends up Disconnected.
func (p *PeerParticipant) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("participant", p.identifier.Key()).Msg("close error")
	}
	p.setState(domain.ParticipantDisconnected)
}

func (p *PeerParticipant) Identifier() domain.Identifier { return p.identifier }

func (p *PeerParticipant) DisplayName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.displayName
}

func (p *PeerParticipant) SetDisplayName(name string) {
	p.mu.Lock()
	p.displayName = name
	p.mu.Unlock()
	p.displayNameChanged.Emit(struct{}{})
}

func (p *PeerParticipant) State() domain.ParticipantState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *PeerParticipant) EndReason() *domain.EndReason {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.endReason
}

// IsMuted reports whether the peer sends no live audio track.
func (p *PeerParticipant) IsMuted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.audioTracks == 0
}

func (p *PeerParticipant) IsSpeaking() bool { return false }

func (p *PeerParticipant) VideoStreams() []core.RemoteVideoStream {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.RemoteVideoStream, 0, len(p.streams))
	for _, s := range p.streams {
		out = append(out, s)
	}
	return out
}

func (p *PeerParticipant) OnStateChanged(fn func()) core.Off       { return p.stateChanged.OnSignal(fn) }
func (p *PeerParticipant) OnIsMutedChanged(fn func()) core.Off     { return p.mutedChanged.OnSignal(fn) }
func (p *PeerParticipant) OnIsSpeakingChanged(fn func()) core.Off  { return p.speakingChanged.OnSignal(fn) }
func (p *PeerParticipant) OnDisplayNameChanged(fn func()) core.Off { return p.displayNameChanged.OnSignal(fn) }
func (p *PeerParticipant) OnVideoStreamsUpdated(fn func(core.RemoteVideoStreamsUpdated)) core.Off {
	return p.streamsUpdated.On(fn)
}

// TrackStream is one remote video track.
type TrackStream struct {
	id      int
	trackID string
	kind    domain.MediaStreamType

	mu               sync.RWMutex
	available        bool
	availableChanged core.Signal
}

func (s *TrackStream) ID() int                                 { return s.id }
func (s *TrackStream) TrackID() string                         { return s.trackID }
func (s *TrackStream) MediaStreamType() domain.MediaStreamType { return s.kind }

func (s *TrackStream) IsAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

func (s *TrackStream) OnIsAvailableChanged(fn func()) core.Off { return s.availableChanged.OnSignal(fn) }

func (s *TrackStream) setAvailable(v bool) {
	s.mu.Lock()
	if s.available == v {
		s.mu.Unlock()
		return
	}
	s.available = v
	s.mu.Unlock()
	s.availableChanged.Emit(struct{}{})
}

// ListenerCount sums the listeners over the participant and its streams.
func (p *PeerParticipant) ListenerCount() int {
	n := p.stateChanged.Len() + p.mutedChanged.Len() + p.speakingChanged.Len() +
		p.displayNameChanged.Len() + p.streamsUpdated.Len()
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.streams {
		n += s.availableChanged.Len()
	}
	return n
}
