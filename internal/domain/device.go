package domain

import (
	"maps"
	"slices"
)

type DeviceAccess struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

// DeviceManager is the device sub-state. UnparentedViews holds local
// previews that are not attached to any call, keyed by SourceKey.
type DeviceManager struct {
	IsSpeakerSelectionAvailable bool                         `json:"isSpeakerSelectionAvailable"`
	SelectedCamera              *VideoDeviceInfo             `json:"selectedCamera,omitempty"`
	SelectedMicrophone          *AudioDeviceInfo             `json:"selectedMicrophone,omitempty"`
	SelectedSpeaker             *AudioDeviceInfo             `json:"selectedSpeaker,omitempty"`
	Cameras                     []VideoDeviceInfo            `json:"cameras"`
	Microphones                 []AudioDeviceInfo            `json:"microphones"`
	Speakers                    []AudioDeviceInfo            `json:"speakers"`
	DeviceAccess                *DeviceAccess                `json:"deviceAccess,omitempty"`
	UnparentedViews             map[string]*LocalVideoStream `json:"unparentedViews"`
}

func (d DeviceManager) Clone() DeviceManager {
	cp := d
	cp.Cameras = slices.Clone(d.Cameras)
	cp.Microphones = slices.Clone(d.Microphones)
	cp.Speakers = slices.Clone(d.Speakers)
	cp.UnparentedViews = maps.Clone(d.UnparentedViews)
	if cp.UnparentedViews == nil {
		cp.UnparentedViews = make(map[string]*LocalVideoStream)
	}
	return cp
}
