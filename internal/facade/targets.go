package facade

import "github.com/dkeye/callstate/internal/domain"

// Error targets, one per proxied operation.
const (
	TargetCreateCallAgent  domain.ErrorTarget = "CallClient.createCallAgent"
	TargetGetDeviceManager domain.ErrorTarget = "CallClient.getDeviceManager"

	TargetStartCall    domain.ErrorTarget = "CallAgent.startCall"
	TargetJoin         domain.ErrorTarget = "CallAgent.join"
	TargetAgentDispose domain.ErrorTarget = "CallAgent.dispose"

	TargetAccept domain.ErrorTarget = "IncomingCall.accept"
	TargetReject domain.ErrorTarget = "IncomingCall.reject"

	TargetMute               domain.ErrorTarget = "Call.mute"
	TargetUnmute             domain.ErrorTarget = "Call.unmute"
	TargetStartVideo         domain.ErrorTarget = "Call.startVideo"
	TargetStopVideo          domain.ErrorTarget = "Call.stopVideo"
	TargetStartScreenSharing domain.ErrorTarget = "Call.startScreenSharing"
	TargetStopScreenSharing  domain.ErrorTarget = "Call.stopScreenSharing"
	TargetHold               domain.ErrorTarget = "Call.hold"
	TargetResume             domain.ErrorTarget = "Call.resume"
	TargetHangUp             domain.ErrorTarget = "Call.hangUp"

	TargetGetCameras          domain.ErrorTarget = "DeviceManager.getCameras"
	TargetGetMicrophones      domain.ErrorTarget = "DeviceManager.getMicrophones"
	TargetGetSpeakers         domain.ErrorTarget = "DeviceManager.getSpeakers"
	TargetSelectMicrophone    domain.ErrorTarget = "DeviceManager.selectMicrophone"
	TargetSelectSpeaker       domain.ErrorTarget = "DeviceManager.selectSpeaker"
	TargetAskDevicePermission domain.ErrorTarget = "DeviceManager.askDevicePermission"
)
