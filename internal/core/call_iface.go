package core

import (
	"context"

	"github.com/dkeye/callstate/internal/domain"
)

// Call is a live session. ID() may change while the session persists;
// OnIDChanged fires after it did.
type Call interface {
	ID() string
	Direction() domain.CallDirection
	State() domain.CallStatus
	EndReason() *domain.EndReason
	IsMuted() bool
	IsScreenSharingOn() bool
	LocalVideoStreams() []LocalVideoStream
	RemoteParticipants() []RemoteParticipant
	Features() Features

	Mute(ctx context.Context) error
	Unmute(ctx context.Context) error
	StartVideo(ctx context.Context, stream LocalVideoStream) error
	StopVideo(ctx context.Context, stream LocalVideoStream) error
	StartScreenSharing(ctx context.Context) error
	StopScreenSharing(ctx context.Context) error
	Hold(ctx context.Context) error
	Resume(ctx context.Context) error
	HangUp(ctx context.Context, forEveryone bool) error

	OnStateChanged(func()) Off
	OnIDChanged(func()) Off
	OnIsMutedChanged(func()) Off
	OnIsScreenSharingOnChanged(func()) Off
	OnLocalVideoStreamsUpdated(func(LocalVideoStreamsUpdated)) Off
	OnRemoteParticipantsUpdated(func(RemoteParticipantsUpdated)) Off
}

type LocalVideoStreamsUpdated struct {
	Added   []LocalVideoStream
	Removed []LocalVideoStream
}

type RemoteParticipantsUpdated struct {
	Added   []RemoteParticipant
	Removed []RemoteParticipant
}

type RemoteParticipant interface {
	Identifier() domain.Identifier
	DisplayName() string
	State() domain.ParticipantState
	EndReason() *domain.EndReason
	IsMuted() bool
	IsSpeaking() bool
	VideoStreams() []RemoteVideoStream

	OnStateChanged(func()) Off
	OnIsMutedChanged(func()) Off
	OnIsSpeakingChanged(func()) Off
	OnDisplayNameChanged(func()) Off
	OnVideoStreamsUpdated(func(RemoteVideoStreamsUpdated)) Off
}

type RemoteVideoStreamsUpdated struct {
	Added   []RemoteVideoStream
	Removed []RemoteVideoStream
}
