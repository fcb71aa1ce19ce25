package domain

type MediaStreamType string

const (
	MediaVideo         MediaStreamType = "Video"
	MediaScreenSharing MediaStreamType = "ScreenSharing"
	MediaRawMedia      MediaStreamType = "RawMedia"
)

type ScalingMode string

const (
	ScalingStretch ScalingMode = "Stretch"
	ScalingCrop    ScalingMode = "Crop"
	ScalingFit     ScalingMode = "Fit"
)

// RenderStatus mirrors the render state machine into the snapshot.
type RenderStatus string

const (
	NotRendered RenderStatus = "NotRendered"
	Rendering   RenderStatus = "Rendering"
	Rendered    RenderStatus = "Rendered"
	Stopping    RenderStatus = "Stopping"
)

// View is what a consumer mounts. Target is an opaque handle the
// renderer hands out; the engine never interprets it.
type View struct {
	Target      string      `json:"target"`
	ScalingMode ScalingMode `json:"scalingMode"`
	IsMirrored  bool        `json:"isMirrored"`
}

type VideoDeviceInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DeviceType string `json:"deviceType"`
}

const (
	AudioMicrophone = "Microphone"
	AudioSpeaker    = "Speaker"
)

type AudioDeviceInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DeviceType   string `json:"deviceType"`
	IsSystemDflt bool   `json:"isSystemDefault"`
}

type LocalVideoStream struct {
	Source          VideoDeviceInfo `json:"source"`
	MediaStreamType MediaStreamType `json:"mediaStreamType"`
	View            *View           `json:"view,omitempty"`
	RenderStatus    RenderStatus    `json:"renderStatus"`
}

// SourceKey identifies a local stream that is not attached to a call.
func (s LocalVideoStream) SourceKey() string {
	return SourceKey(s.Source.ID, s.MediaStreamType)
}

func SourceKey(deviceID string, t MediaStreamType) string {
	return string(t) + ":" + deviceID
}

// RemoteVideoStream ids are scoped to (call, participant); two participants
// of the same call may expose streams with the same id.
type RemoteVideoStream struct {
	ID              int             `json:"id"`
	MediaStreamType MediaStreamType `json:"mediaStreamType"`
	IsAvailable     bool            `json:"isAvailable"`
	View            *View           `json:"view,omitempty"`
	RenderStatus    RenderStatus    `json:"renderStatus"`
}
