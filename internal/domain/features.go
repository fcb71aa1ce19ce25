package domain

import "time"

type RecordingState struct {
	IsRecordingActive bool `json:"isRecordingActive"`
}

type TranscriptionState struct {
	IsTranscriptionActive bool `json:"isTranscriptionActive"`
}

type AcceptedTransfer struct {
	TargetCallID string    `json:"callId"`
	Timestamp    time.Time `json:"timestamp"`
}

type TransferState struct {
	AcceptedTransfers map[string]AcceptedTransfer `json:"acceptedTransfers"`
}

type CaptionResultType string

const (
	CaptionPartial CaptionResultType = "Partial"
	CaptionFinal   CaptionResultType = "Final"
)

const DefaultMaxCaptions = 50

type Caption struct {
	Speaker        CallerInfo        `json:"speaker"`
	SpokenText     string            `json:"spokenText"`
	ResultType     CaptionResultType `json:"resultType"`
	SpokenLanguage string            `json:"spokenLanguage"`
	Timestamp      time.Time         `json:"timestamp"`
}

type CaptionsState struct {
	IsCaptionsActive bool      `json:"isCaptionFeatureActive"`
	SpokenLanguage   string    `json:"currentSpokenLanguage"`
	Captions         []Caption `json:"captions"`
}

type SpotlightedParticipant struct {
	Identifier Identifier `json:"identifier"`
	Order      int        `json:"order"`
}

type SpotlightState struct {
	SpotlightedParticipants   []SpotlightedParticipant `json:"spotlightedParticipants"`
	LocalParticipantSpotlight *Spotlight               `json:"localParticipantSpotlight,omitempty"`
}

type RaiseHandState struct {
	RaisedHands                []RaisedHand `json:"raisedHands"`
	LocalParticipantRaisedHand *RaisedHand  `json:"localParticipantRaisedHand,omitempty"`
}

type DiagnosticValueType string

const (
	DiagnosticQuality DiagnosticValueType = "DiagnosticQuality"
	DiagnosticFlag    DiagnosticValueType = "DiagnosticFlag"
)

// Diagnostic holds either a quality level (1 good .. 3 bad) or a flag,
// depending on ValueType.
type Diagnostic struct {
	ValueType DiagnosticValueType `json:"valueType"`
	Quality   int                 `json:"quality,omitempty"`
	Flag      bool                `json:"flag,omitempty"`
}

type DiagnosticsState struct {
	Network map[string]Diagnostic `json:"network"`
	Media   map[string]Diagnostic `json:"media"`
}

type TogetherModeState struct {
	IsActive bool                       `json:"isActive"`
	Streams  map[int]*RemoteVideoStream `json:"streams"`
}
