package core

import "github.com/dkeye/callstate/internal/domain"

// Features lists the optional add-ons of a call. A nil field means the
// call does not support that feature.
type Features struct {
	Recording     RecordingFeature
	Transcription TranscriptionFeature
	Transfer      TransferFeature
	Captions      CaptionsFeature
	Spotlight     SpotlightFeature
	RaiseHand     RaiseHandFeature
	Reactions     ReactionsFeature
	Diagnostics   DiagnosticsFeature
	MediaAccess   MediaAccessFeature
	TogetherMode  TogetherModeFeature
}

type RecordingFeature interface {
	IsRecordingActive() bool
	OnIsRecordingActiveChanged(func()) Off
}

type TranscriptionFeature interface {
	IsTranscriptionActive() bool
	OnIsTranscriptionActiveChanged(func()) Off
}

type TransferAccepted struct {
	TargetCallID string
}

type TransferFeature interface {
	OnTransferAccepted(func(TransferAccepted)) Off
}

type CaptionsFeature interface {
	IsCaptionsActive() bool
	SpokenLanguage() string
	OnCaptionsActiveChanged(func()) Off
	OnSpokenLanguageChanged(func()) Off
	OnCaptionsReceived(func(domain.Caption)) Off
}

type SpotlightChanged struct {
	Added   []domain.SpotlightedParticipant
	Removed []domain.SpotlightedParticipant
}

type SpotlightFeature interface {
	SpotlightedParticipants() []domain.SpotlightedParticipant
	OnSpotlightChanged(func(SpotlightChanged)) Off
}

type RaiseHandFeature interface {
	RaisedHands() []domain.RaisedHand
	OnRaisedHand(func(domain.RaisedHand)) Off
	OnLoweredHand(func(domain.RaisedHand)) Off
}

type ReactionMessage struct {
	Identifier   domain.Identifier
	ReactionType string
}

type ReactionsFeature interface {
	OnReaction(func(ReactionMessage)) Off
}

type DiagnosticChanged struct {
	Name  string
	Value domain.Diagnostic
}

type DiagnosticsFeature interface {
	Network() map[string]domain.Diagnostic
	Media() map[string]domain.Diagnostic
	OnNetworkDiagnosticChanged(func(DiagnosticChanged)) Off
	OnMediaDiagnosticChanged(func(DiagnosticChanged)) Off
}

type ParticipantMediaAccess struct {
	Identifier domain.Identifier
	Access     domain.MediaAccess
}

type MediaAccessChanged struct {
	MediaAccesses []ParticipantMediaAccess
}

type MediaAccessFeature interface {
	MediaAccesses() []ParticipantMediaAccess
	OnMediaAccessChanged(func(MediaAccessChanged)) Off
}

type TogetherModeFeature interface {
	Streams() []RemoteVideoStream
	OnStreamsUpdated(func(RemoteVideoStreamsUpdated)) Off
}
