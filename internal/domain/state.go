package domain

import "maps"

type Agent struct {
	DisplayName string `json:"displayName,omitempty"`
}

// State is the root of the snapshot. A published State is never mutated;
// every change produces a new root with a higher Version.
type State struct {
	Version            uint64                         `json:"version"`
	UserID             Identifier                     `json:"userId"`
	Calls              map[string]*Call               `json:"calls"`
	CallsEnded         History[string, *Call]         `json:"callsEnded"`
	IncomingCalls      map[string]*IncomingCall       `json:"incomingCalls"`
	IncomingCallsEnded History[string, *IncomingCall] `json:"incomingCallsEnded"`
	DeviceManager      DeviceManager                  `json:"deviceManager"`
	LatestErrors       map[ErrorTarget]*CallError     `json:"latestErrors"`
	Agent              *Agent                         `json:"callAgent,omitempty"`
}

type Capacities struct {
	EndedCalls         int
	EndedIncomingCalls int
	EndedParticipants  int
	Captions           int
}

func DefaultCapacities() Capacities {
	return Capacities{
		EndedCalls:         DefaultHistoryCapacity,
		EndedIncomingCalls: DefaultHistoryCapacity,
		EndedParticipants:  DefaultHistoryCapacity,
		Captions:           DefaultMaxCaptions,
	}
}

func NewState(userID Identifier, caps Capacities) *State {
	return &State{
		UserID:             userID,
		Calls:              make(map[string]*Call),
		CallsEnded:         NewHistory[string, *Call](caps.EndedCalls),
		IncomingCalls:      make(map[string]*IncomingCall),
		IncomingCallsEnded: NewHistory[string, *IncomingCall](caps.EndedIncomingCalls),
		DeviceManager:      DeviceManager{UnparentedViews: make(map[string]*LocalVideoStream)},
		LatestErrors:       make(map[ErrorTarget]*CallError),
	}
}

// ShallowClone copies the root and its top level maps.
func (s *State) ShallowClone() *State {
	cp := *s
	cp.Calls = maps.Clone(s.Calls)
	cp.IncomingCalls = maps.Clone(s.IncomingCalls)
	cp.LatestErrors = maps.Clone(s.LatestErrors)
	cp.DeviceManager = s.DeviceManager.Clone()
	return &cp
}
