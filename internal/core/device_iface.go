package core

import (
	"context"

	"github.com/dkeye/callstate/internal/domain"
)

type PermissionConstraints struct {
	Audio bool
	Video bool
}

type DeviceManager interface {
	GetCameras(ctx context.Context) ([]domain.VideoDeviceInfo, error)
	GetMicrophones(ctx context.Context) ([]domain.AudioDeviceInfo, error)
	GetSpeakers(ctx context.Context) ([]domain.AudioDeviceInfo, error)
	SelectedMicrophone() *domain.AudioDeviceInfo
	SelectedSpeaker() *domain.AudioDeviceInfo
	IsSpeakerSelectionAvailable() bool
	SelectMicrophone(ctx context.Context, device domain.AudioDeviceInfo) error
	SelectSpeaker(ctx context.Context, device domain.AudioDeviceInfo) error
	AskDevicePermission(ctx context.Context, c PermissionConstraints) (domain.DeviceAccess, error)

	OnVideoDevicesUpdated(func(VideoDevicesUpdated)) Off
	OnAudioDevicesUpdated(func(AudioDevicesUpdated)) Off
	OnSelectedMicrophoneChanged(func()) Off
	OnSelectedSpeakerChanged(func()) Off
}

type VideoDevicesUpdated struct {
	Added   []domain.VideoDeviceInfo
	Removed []domain.VideoDeviceInfo
}

type AudioDevicesUpdated struct {
	Added   []domain.AudioDeviceInfo
	Removed []domain.AudioDeviceInfo
}
