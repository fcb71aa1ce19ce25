package facade

import (
	"context"
	"slices"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
)

// DeviceManagerProxy writes enumerations and permission grants into the
// snapshot in addition to returning them.
type DeviceManagerProxy struct {
	core.DeviceManager
	client *StatefulClient
}

func (m *DeviceManagerProxy) GetCameras(ctx context.Context) ([]domain.VideoDeviceInfo, error) {
	cams, err := m.DeviceManager.GetCameras(ctx)
	if err != nil {
		return nil, m.client.capture(TargetGetCameras, err)
	}
	m.client.store.Apply(func(d *app.Draft) {
		dm := d.DeviceManager()
		dm.Cameras = slices.Clone(cams)
		if dm.SelectedCamera == nil && len(cams) > 0 {
			first := cams[0]
			dm.SelectedCamera = &first
		}
	})
	return cams, nil
}

func (m *DeviceManagerProxy) GetMicrophones(ctx context.Context) ([]domain.AudioDeviceInfo, error) {
	mics, err := m.DeviceManager.GetMicrophones(ctx)
	if err != nil {
		return nil, m.client.capture(TargetGetMicrophones, err)
	}
	m.client.store.Apply(func(d *app.Draft) { d.DeviceManager().Microphones = slices.Clone(mics) })
	return mics, nil
}

func (m *DeviceManagerProxy) GetSpeakers(ctx context.Context) ([]domain.AudioDeviceInfo, error) {
	spks, err := m.DeviceManager.GetSpeakers(ctx)
	if err != nil {
		return nil, m.client.capture(TargetGetSpeakers, err)
	}
	m.client.store.Apply(func(d *app.Draft) { d.DeviceManager().Speakers = slices.Clone(spks) })
	return spks, nil
}

func (m *DeviceManagerProxy) SelectMicrophone(ctx context.Context, device domain.AudioDeviceInfo) error {
	return m.client.capture(TargetSelectMicrophone, m.DeviceManager.SelectMicrophone(ctx, device))
}

func (m *DeviceManagerProxy) SelectSpeaker(ctx context.Context, device domain.AudioDeviceInfo) error {
	return m.client.capture(TargetSelectSpeaker, m.DeviceManager.SelectSpeaker(ctx, device))
}

// SelectCamera only records the choice; the SDK has no camera selection.
func (m *DeviceManagerProxy) SelectCamera(device domain.VideoDeviceInfo) {
	m.client.store.Apply(func(d *app.Draft) { d.DeviceManager().SelectedCamera = &device })
}

func (m *DeviceManagerProxy) AskDevicePermission(ctx context.Context, c core.PermissionConstraints) (domain.DeviceAccess, error) {
	access, err := m.DeviceManager.AskDevicePermission(ctx, c)
	if err != nil {
		return domain.DeviceAccess{}, m.client.capture(TargetAskDevicePermission, err)
	}
	m.client.store.Apply(func(d *app.Draft) { d.DeviceManager().DeviceAccess = &access })
	return access, nil
}
