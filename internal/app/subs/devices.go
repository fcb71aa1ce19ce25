package subs

import (
	"slices"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
)

type DeviceManagerSubscriber struct {
	lis listeners
}

func NewDeviceManagerSubscriber(deps *Deps, dm core.DeviceManager) *DeviceManagerSubscriber {
	s := &DeviceManagerSubscriber{}
	log := logger("subs.devices")

	mic, speaker, selection := dm.SelectedMicrophone(), dm.SelectedSpeaker(), dm.IsSpeakerSelectionAvailable()
	deps.Store.Apply(func(d *app.Draft) {
		m := d.DeviceManager()
		m.SelectedMicrophone = mic
		m.SelectedSpeaker = speaker
		m.IsSpeakerSelectionAvailable = selection
	})

	s.lis.add(
		dm.OnVideoDevicesUpdated(func(ev core.VideoDevicesUpdated) {
			deps.Store.Apply(func(d *app.Draft) {
				m := d.DeviceManager()
				m.Cameras = mergeDevices(m.Cameras, ev.Added, ev.Removed, func(v domain.VideoDeviceInfo) string { return v.ID })
				if m.SelectedCamera != nil && slices.ContainsFunc(ev.Removed, func(v domain.VideoDeviceInfo) bool {
					return v.ID == m.SelectedCamera.ID
				}) {
					m.SelectedCamera = nil
				}
			})
			log.Debug().Int("added", len(ev.Added)).Int("removed", len(ev.Removed)).Msg("cameras updated")
		}),
		dm.OnAudioDevicesUpdated(func(ev core.AudioDevicesUpdated) {
			mics, mAdd, mDel := splitAudio(ev.Added, ev.Removed, domain.AudioMicrophone)
			spks, sAdd, sDel := splitAudio(ev.Added, ev.Removed, domain.AudioSpeaker)
			id := func(a domain.AudioDeviceInfo) string { return a.ID }
			deps.Store.Apply(func(d *app.Draft) {
				m := d.DeviceManager()
				if mics {
					m.Microphones = mergeDevices(m.Microphones, mAdd, mDel, id)
				}
				if spks {
					m.Speakers = mergeDevices(m.Speakers, sAdd, sDel, id)
				}
			})
			log.Debug().Int("added", len(ev.Added)).Int("removed", len(ev.Removed)).Msg("audio devices updated")
		}),
		dm.OnSelectedMicrophoneChanged(func() {
			sel := dm.SelectedMicrophone()
			deps.Store.Apply(func(d *app.Draft) { d.DeviceManager().SelectedMicrophone = sel })
		}),
		dm.OnSelectedSpeakerChanged(func() {
			sel := dm.SelectedSpeaker()
			deps.Store.Apply(func(d *app.Draft) { d.DeviceManager().SelectedSpeaker = sel })
		}),
	)
	return s
}

func (s *DeviceManagerSubscriber) Unsubscribe() { s.lis.close() }

// mergeDevices returns a fresh list: list minus removed, plus added, with
// an added device replacing one of the same id.
func mergeDevices[T any](list, added, removed []T, id func(T) string) []T {
	drop := make(map[string]struct{}, len(added)+len(removed))
	for _, d := range removed {
		drop[id(d)] = struct{}{}
	}
	for _, d := range added {
		drop[id(d)] = struct{}{}
	}
	out := slices.DeleteFunc(slices.Clone(list), func(d T) bool {
		_, ok := drop[id(d)]
		return ok
	})
	return append(out, added...)
}

// splitAudio keeps the devices of one kind. Devices without a kind count
// for both.
func splitAudio(added, removed []domain.AudioDeviceInfo, kind string) (bool, []domain.AudioDeviceInfo, []domain.AudioDeviceInfo) {
	match := func(a domain.AudioDeviceInfo) bool { return a.DeviceType == kind || a.DeviceType == "" }
	var add, del []domain.AudioDeviceInfo
	for _, a := range added {
		if match(a) {
			add = append(add, a)
		}
	}
	for _, a := range removed {
		if match(a) {
			del = append(del, a)
		}
	}
	return len(add)+len(del) > 0, add, del
}
