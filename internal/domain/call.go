package domain

import (
	"maps"
	"slices"
	"time"
)

type CallStatus string

const (
	CallNone          CallStatus = "None"
	CallConnecting    CallStatus = "Connecting"
	CallRinging       CallStatus = "Ringing"
	CallConnected     CallStatus = "Connected"
	CallLocalHold     CallStatus = "LocalHold"
	CallRemoteHold    CallStatus = "RemoteHold"
	CallInLobby       CallStatus = "InLobby"
	CallDisconnecting CallStatus = "Disconnecting"
	CallDisconnected  CallStatus = "Disconnected"
	CallEarlyMedia    CallStatus = "EarlyMedia"
)

type CallDirection string

const (
	Incoming CallDirection = "Incoming"
	Outgoing CallDirection = "Outgoing"
)

// Call is the snapshot of one session. Once EndTime is set the call lives
// in State.CallsEnded and is never modified again.
type Call struct {
	ID                           string                              `json:"id"`
	Direction                    CallDirection                       `json:"direction"`
	State                        CallStatus                          `json:"state"`
	EndReason                    *EndReason                          `json:"callEndReason,omitempty"`
	IsMuted                      bool                                `json:"isMuted"`
	IsScreenSharingOn            bool                                `json:"isScreenSharingOn"`
	LocalVideoStreams            []LocalVideoStream                  `json:"localVideoStreams"`
	RemoteParticipants           map[string]*RemoteParticipant       `json:"remoteParticipants"`
	RemoteParticipantsEnded      History[string, *RemoteParticipant] `json:"remoteParticipantsEnded"`
	ScreenShareRemoteParticipant string                              `json:"screenShareRemoteParticipant,omitempty"`
	Recording                    RecordingState                      `json:"recording"`
	Transcription                TranscriptionState                  `json:"transcription"`
	Transfer                     TransferState                       `json:"transfer"`
	Captions                     CaptionsState                       `json:"captionsFeature"`
	Spotlight                    SpotlightState                      `json:"spotlight"`
	RaiseHand                    RaiseHandState                      `json:"raiseHand"`
	LocalParticipantReaction     *Reaction                           `json:"localParticipantReaction,omitempty"`
	Diagnostics                  DiagnosticsState                    `json:"diagnostics"`
	TogetherMode                 TogetherModeState                   `json:"togetherMode"`
	StartTime                    time.Time                           `json:"startTime"`
	EndTime                      *time.Time                          `json:"endTime,omitempty"`
}

func NewCall(id string, participantHistory int) *Call {
	return &Call{
		ID:                      id,
		State:                   CallNone,
		RemoteParticipants:      make(map[string]*RemoteParticipant),
		RemoteParticipantsEnded: NewHistory[string, *RemoteParticipant](participantHistory),
		Transfer:                TransferState{AcceptedTransfers: make(map[string]AcceptedTransfer)},
		Diagnostics: DiagnosticsState{
			Network: make(map[string]Diagnostic),
			Media:   make(map[string]Diagnostic),
		},
		TogetherMode: TogetherModeState{Streams: make(map[int]*RemoteVideoStream)},
	}
}

func (c *Call) Ended() bool { return c.EndTime != nil }

// Clone copies the call together with its slices and maps. Participant
// and stream values are shared until the caller replaces them.
func (c *Call) Clone() *Call {
	cp := *c
	cp.LocalVideoStreams = slices.Clone(c.LocalVideoStreams)
	cp.RemoteParticipants = maps.Clone(c.RemoteParticipants)
	if cp.RemoteParticipants == nil {
		cp.RemoteParticipants = make(map[string]*RemoteParticipant)
	}
	cp.Transfer.AcceptedTransfers = maps.Clone(c.Transfer.AcceptedTransfers)
	cp.Captions.Captions = slices.Clone(c.Captions.Captions)
	cp.Spotlight.SpotlightedParticipants = slices.Clone(c.Spotlight.SpotlightedParticipants)
	cp.RaiseHand.RaisedHands = slices.Clone(c.RaiseHand.RaisedHands)
	cp.Diagnostics.Network = maps.Clone(c.Diagnostics.Network)
	cp.Diagnostics.Media = maps.Clone(c.Diagnostics.Media)
	cp.TogetherMode.Streams = maps.Clone(c.TogetherMode.Streams)
	return &cp
}

// LocalStream returns the index of the local stream of type t, or -1.
func (c *Call) LocalStream(t MediaStreamType) int {
	return slices.IndexFunc(c.LocalVideoStreams, func(s LocalVideoStream) bool {
		return s.MediaStreamType == t
	})
}

type IncomingCall struct {
	ID         string     `json:"id"`
	CallerInfo CallerInfo `json:"callerInfo"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	EndReason  *EndReason `json:"callEndReason,omitempty"`
}

type CallerInfo struct {
	Identifier  Identifier `json:"identifier"`
	DisplayName string     `json:"displayName,omitempty"`
}
