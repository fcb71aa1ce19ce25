package memsdk

import (
	"context"
	"sync"

	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
)

type LocalStream struct {
	faults

	mu     sync.RWMutex
	source domain.VideoDeviceInfo
	kind   domain.MediaStreamType
}

func NewLocalStream(source domain.VideoDeviceInfo, t domain.MediaStreamType) *LocalStream {
	return &LocalStream{source: source, kind: t}
}

func (s *LocalStream) MediaStreamType() domain.MediaStreamType { return s.kind }

func (s *LocalStream) Source() domain.VideoDeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *LocalStream) SwitchSource(_ context.Context, source domain.VideoDeviceInfo) error {
	if err := s.take("switchSource"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	return nil
}

type RemoteStream struct {
	mu        sync.RWMutex
	id        int
	kind      domain.MediaStreamType
	available bool

	availableChanged core.Signal
}

func NewRemoteStream(id int, t domain.MediaStreamType, available bool) *RemoteStream {
	return &RemoteStream{id: id, kind: t, available: available}
}

func (s *RemoteStream) ID() int                                 { return s.id }
func (s *RemoteStream) MediaStreamType() domain.MediaStreamType { return s.kind }

func (s *RemoteStream) IsAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

func (s *RemoteStream) OnIsAvailableChanged(fn func()) core.Off {
	return s.availableChanged.OnSignal(fn)
}

func (s *RemoteStream) ListenerCount() int { return s.availableChanged.Len() }

func (s *RemoteStream) SetAvailable(available bool) {
	s.mu.Lock()
	s.available = available
	s.mu.Unlock()
	s.availableChanged.Emit(struct{}{})
}
