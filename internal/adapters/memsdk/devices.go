package memsdk

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
)

type DeviceManager struct {
	faults

	mu                 sync.RWMutex
	cameras            []domain.VideoDeviceInfo
	microphones        []domain.AudioDeviceInfo
	speakers           []domain.AudioDeviceInfo
	selectedMicrophone *domain.AudioDeviceInfo
	selectedSpeaker    *domain.AudioDeviceInfo
	speakerSelection   bool
	access             domain.DeviceAccess

	videoUpdated       core.Topic[core.VideoDevicesUpdated]
	audioUpdated       core.Topic[core.AudioDevicesUpdated]
	microphoneSelected core.Signal
	speakerSelected    core.Signal
}

func NewDeviceManager() *DeviceManager {
	return &DeviceManager{
		speakerSelection: true,
		access:           domain.DeviceAccess{Audio: true, Video: true},
	}
}

func (m *DeviceManager) GetCameras(context.Context) ([]domain.VideoDeviceInfo, error) {
	if err := m.take("getCameras"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.cameras), nil
}

func (m *DeviceManager) GetMicrophones(context.Context) ([]domain.AudioDeviceInfo, error) {
	if err := m.take("getMicrophones"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.microphones), nil
}

func (m *DeviceManager) GetSpeakers(context.Context) ([]domain.AudioDeviceInfo, error) {
	if err := m.take("getSpeakers"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.speakers), nil
}

func (m *DeviceManager) SelectedMicrophone() *domain.AudioDeviceInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selectedMicrophone
}

func (m *DeviceManager) SelectedSpeaker() *domain.AudioDeviceInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selectedSpeaker
}

func (m *DeviceManager) IsSpeakerSelectionAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.speakerSelection
}

func (m *DeviceManager) SelectMicrophone(_ context.Context, d domain.AudioDeviceInfo) error {
	if err := m.take("selectMicrophone"); err != nil {
		return err
	}
	m.mu.Lock()
	m.selectedMicrophone = &d
	m.mu.Unlock()
	m.microphoneSelected.Emit(struct{}{})
	return nil
}

func (m *DeviceManager) SelectSpeaker(_ context.Context, d domain.AudioDeviceInfo) error {
	if err := m.take("selectSpeaker"); err != nil {
		return err
	}
	m.mu.Lock()
	m.selectedSpeaker = &d
	m.mu.Unlock()
	m.speakerSelected.Emit(struct{}{})
	return nil
}

func (m *DeviceManager) AskDevicePermission(_ context.Context, c core.PermissionConstraints) (domain.DeviceAccess, error) {
	if err := m.take("askDevicePermission"); err != nil {
		return domain.DeviceAccess{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.DeviceAccess{
		Audio: c.Audio && m.access.Audio,
		Video: c.Video && m.access.Video,
	}, nil
}

func (m *DeviceManager) OnVideoDevicesUpdated(fn func(core.VideoDevicesUpdated)) core.Off {
	return m.videoUpdated.On(fn)
}
func (m *DeviceManager) OnAudioDevicesUpdated(fn func(core.AudioDevicesUpdated)) core.Off {
	return m.audioUpdated.On(fn)
}
func (m *DeviceManager) OnSelectedMicrophoneChanged(fn func()) core.Off {
	return m.microphoneSelected.OnSignal(fn)
}
func (m *DeviceManager) OnSelectedSpeakerChanged(fn func()) core.Off {
	return m.speakerSelected.OnSignal(fn)
}

func (m *DeviceManager) ListenerCount() int {
	return m.videoUpdated.Len() + m.audioUpdated.Len() + m.microphoneSelected.Len() + m.speakerSelected.Len()
}

// SetAccess sets what AskDevicePermission grants.
func (m *DeviceManager) SetAccess(a domain.DeviceAccess) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = a
}

func (m *DeviceManager) AddCamera(d domain.VideoDeviceInfo) {
	m.mu.Lock()
	m.cameras = append(m.cameras, d)
	m.mu.Unlock()
	m.videoUpdated.Emit(core.VideoDevicesUpdated{Added: []domain.VideoDeviceInfo{d}})
}

func (m *DeviceManager) RemoveCamera(id string) {
	m.mu.Lock()
	var removed []domain.VideoDeviceInfo
	m.cameras = slices.DeleteFunc(m.cameras, func(d domain.VideoDeviceInfo) bool {
		if d.ID == id {
			removed = append(removed, d)
			return true
		}
		return false
	})
	m.mu.Unlock()
	if len(removed) > 0 {
		m.videoUpdated.Emit(core.VideoDevicesUpdated{Removed: removed})
	}
}

func (m *DeviceManager) AddMicrophone(d domain.AudioDeviceInfo) {
	d.DeviceType = domain.AudioMicrophone
	m.mu.Lock()
	m.microphones = append(m.microphones, d)
	m.mu.Unlock()
	m.audioUpdated.Emit(core.AudioDevicesUpdated{Added: []domain.AudioDeviceInfo{d}})
}

func (m *DeviceManager) AddSpeaker(d domain.AudioDeviceInfo) {
	d.DeviceType = domain.AudioSpeaker
	m.mu.Lock()
	m.speakers = append(m.speakers, d)
	m.mu.Unlock()
	m.audioUpdated.Emit(core.AudioDevicesUpdated{Added: []domain.AudioDeviceInfo{d}})
}
