package memsdk

import (
	"slices"
	"sync"

	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
)

type Participant struct {
	mu          sync.RWMutex
	identifier  domain.Identifier
	displayName string
	state       domain.ParticipantState
	endReason   *domain.EndReason
	muted       bool
	speaking    bool
	streams     []*RemoteStream

	stateChanged       core.Signal
	mutedChanged       core.Signal
	speakingChanged    core.Signal
	displayNameChanged core.Signal
	streamsUpdated     core.Topic[core.RemoteVideoStreamsUpdated]
}

func NewParticipant(id domain.Identifier, displayName string) *Participant {
	return &Participant{identifier: id, displayName: displayName, state: domain.ParticipantConnecting}
}

func (p *Participant) Identifier() domain.Identifier { return p.identifier }

func (p *Participant) DisplayName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.displayName
}

func (p *Participant) State() domain.ParticipantState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Participant) EndReason() *domain.EndReason {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.endReason
}

func (p *Participant) IsMuted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.muted
}

func (p *Participant) IsSpeaking() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.speaking
}

func (p *Participant) VideoStreams() []core.RemoteVideoStream {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.RemoteVideoStream, 0, len(p.streams))
	for _, s := range p.streams {
		out = append(out, s)
	}
	return out
}

func (p *Participant) OnStateChanged(fn func()) core.Off      { return p.stateChanged.OnSignal(fn) }
func (p *Participant) OnIsMutedChanged(fn func()) core.Off    { return p.mutedChanged.OnSignal(fn) }
func (p *Participant) OnIsSpeakingChanged(fn func()) core.Off { return p.speakingChanged.OnSignal(fn) }
func (p *Participant) OnDisplayNameChanged(fn func()) core.Off {
	return p.displayNameChanged.OnSignal(fn)
}
func (p *Participant) OnVideoStreamsUpdated(fn func(core.RemoteVideoStreamsUpdated)) core.Off {
	return p.streamsUpdated.On(fn)
}

func (p *Participant) ListenerCount() int {
	n := p.stateChanged.Len() + p.mutedChanged.Len() + p.speakingChanged.Len() +
		p.displayNameChanged.Len() + p.streamsUpdated.Len()
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.streams {
		n += s.ListenerCount()
	}
	return n
}

func (p *Participant) SetState(s domain.ParticipantState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	p.stateChanged.Emit(struct{}{})
}

func (p *Participant) disconnect(reason domain.EndReason) {
	p.mu.Lock()
	p.state = domain.ParticipantDisconnected
	p.endReason = &reason
	p.mu.Unlock()
	p.stateChanged.Emit(struct{}{})
}

func (p *Participant) SetMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
	p.mutedChanged.Emit(struct{}{})
}

func (p *Participant) SetSpeaking(speaking bool) {
	p.mu.Lock()
	p.speaking = speaking
	p.mu.Unlock()
	p.speakingChanged.Emit(struct{}{})
}

func (p *Participant) SetDisplayName(name string) {
	p.mu.Lock()
	p.displayName = name
	p.mu.Unlock()
	p.displayNameChanged.Emit(struct{}{})
}

func (p *Participant) AddStream(s *RemoteStream) {
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()
	p.streamsUpdated.Emit(core.RemoteVideoStreamsUpdated{Added: []core.RemoteVideoStream{s}})
}

func (p *Participant) RemoveStream(s *RemoteStream) {
	p.mu.Lock()
	i := slices.Index(p.streams, s)
	if i < 0 {
		p.mu.Unlock()
		return
	}
	p.streams = slices.Delete(p.streams, i, i+1)
	p.mu.Unlock()
	p.streamsUpdated.Emit(core.RemoteVideoStreamsUpdated{Removed: []core.RemoteVideoStream{s}})
}
