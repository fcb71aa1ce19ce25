package domain

import (
	"maps"
	"time"
)

type ParticipantState string

const (
	ParticipantIdle         ParticipantState = "Idle"
	ParticipantConnecting   ParticipantState = "Connecting"
	ParticipantRinging      ParticipantState = "Ringing"
	ParticipantConnected    ParticipantState = "Connected"
	ParticipantHold         ParticipantState = "Hold"
	ParticipantInLobby      ParticipantState = "InLobby"
	ParticipantEarlyMedia   ParticipantState = "EarlyMedia"
	ParticipantDisconnected ParticipantState = "Disconnected"
)

type EndReason struct {
	Code    int `json:"code"`
	Subcode int `json:"subcode"`
}

// RemoteParticipant is keyed in its call by Identifier.Key().
type RemoteParticipant struct {
	Identifier   Identifier                 `json:"identifier"`
	DisplayName  string                     `json:"displayName,omitempty"`
	State        ParticipantState           `json:"state"`
	EndReason    *EndReason                 `json:"callEndReason,omitempty"`
	IsMuted      bool                       `json:"isMuted"`
	IsSpeaking   bool                       `json:"isSpeaking"`
	VideoStreams map[int]*RemoteVideoStream `json:"videoStreams"`
	RaisedHand   *RaisedHand                `json:"raisedHand,omitempty"`
	Reaction     *Reaction                  `json:"reactionState,omitempty"`
	Spotlight    *Spotlight                 `json:"spotlight,omitempty"`
	MediaAccess  *MediaAccess               `json:"mediaAccess,omitempty"`
}

func (p *RemoteParticipant) Key() string { return p.Identifier.Key() }

// Clone copies the participant and its stream map. Streams themselves are
// shared until replaced.
func (p *RemoteParticipant) Clone() *RemoteParticipant {
	cp := *p
	cp.VideoStreams = maps.Clone(p.VideoStreams)
	if cp.VideoStreams == nil {
		cp.VideoStreams = make(map[int]*RemoteVideoStream)
	}
	return &cp
}

// HasAvailableScreenShare reports whether any stream other than skipID is
// an available screen share.
func (p *RemoteParticipant) HasAvailableScreenShare(skipID int) bool {
	for id, s := range p.VideoStreams {
		if id == skipID {
			continue
		}
		if s.MediaStreamType == MediaScreenSharing && s.IsAvailable {
			return true
		}
	}
	return false
}

type RaisedHand struct {
	Identifier Identifier `json:"identifier"`
	Order      int        `json:"raisedHandOrderPosition"`
}

type Reaction struct {
	ReactionType string    `json:"reactionType"`
	ReceivedOn   time.Time `json:"receivedOn"`
}

type Spotlight struct {
	Order int `json:"spotlightedOrderPosition"`
}

type MediaAccess struct {
	IsAudioPermitted bool `json:"isAudioPermitted"`
	IsVideoPermitted bool `json:"isVideoPermitted"`
}
