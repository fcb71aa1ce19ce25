// Package core declares the external calling SDK the engine observes.
// Implementations own the live objects; the engine only reads them and
// listens to their events.
package core

import (
	"context"

	"github.com/dkeye/callstate/internal/domain"
)

// CallClient is the SDK root.
type CallClient interface {
	CreateCallAgent(ctx context.Context, opts CallAgentOptions) (CallAgent, error)
	GetDeviceManager(ctx context.Context) (DeviceManager, error)
}

type CallAgentOptions struct {
	DisplayName string
}

type StartCallOptions struct {
	VideoStreams []LocalVideoStream
	Muted        bool
}

// Locator points at a call to join: a group id or a meeting link.
type Locator struct {
	GroupID     string
	MeetingLink string
}

type CallAgent interface {
	DisplayName() string
	Calls() []Call

	StartCall(ctx context.Context, participants []domain.Identifier, opts StartCallOptions) (Call, error)
	Join(ctx context.Context, locator Locator, opts StartCallOptions) (Call, error)
	Dispose(ctx context.Context) error

	OnCallsUpdated(func(CallsUpdated)) Off
	OnIncomingCall(func(IncomingCall)) Off
}

type CallsUpdated struct {
	Added   []Call
	Removed []Call
}

type IncomingCall interface {
	ID() string
	CallerInfo() domain.CallerInfo
	Accept(ctx context.Context, opts StartCallOptions) (Call, error)
	Reject(ctx context.Context) error

	OnCallEnded(func(IncomingCallEnded)) Off
}

type IncomingCallEnded struct {
	EndReason domain.EndReason
}

// CodedError is implemented by SDK errors that carry machine readable codes.
type CodedError interface {
	error
	Code() int
	Subcode() int
}
