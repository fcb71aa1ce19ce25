// Package domain contains the snapshot entities without logic, just state.
package domain

import (
	"errors"
	"strings"
)

type IdentifierKind string

const (
	KindCommunicationUser  IdentifierKind = "communicationUser"
	KindPhoneNumber        IdentifierKind = "phoneNumber"
	KindMicrosoftTeamsUser IdentifierKind = "microsoftTeamsUser"
	KindUnknown            IdentifierKind = "unknown"
)

type TeamsCloud string

const (
	CloudPublic TeamsCloud = "public"
	CloudDod    TeamsCloud = "dod"
	CloudGcch   TeamsCloud = "gcch"
)

var ErrIdentifierEmpty = errors.New("identifier empty")

// Identifier is the structured identity of a call participant.
// The SDK may hand out raw strings in different shapes for the same
// person, so snapshot maps are keyed by Key() instead.
type Identifier struct {
	Kind  IdentifierKind `json:"kind"`
	ID    string         `json:"id"`
	Cloud TeamsCloud     `json:"cloud,omitempty"`
}

func CommunicationUser(id string) Identifier {
	return Identifier{Kind: KindCommunicationUser, ID: id}
}

func PhoneNumber(number string) Identifier {
	return Identifier{Kind: KindPhoneNumber, ID: number}
}

func TeamsUser(id string, cloud TeamsCloud) Identifier {
	return Identifier{Kind: KindMicrosoftTeamsUser, ID: id, Cloud: cloud}
}

// Key returns the normalized flat form of the identifier.
func (i Identifier) Key() string {
	switch i.Kind {
	case KindPhoneNumber:
		return "4:" + strings.TrimPrefix(i.ID, "4:")
	case KindMicrosoftTeamsUser:
		switch i.Cloud {
		case CloudDod:
			return "8:dod:" + i.ID
		case CloudGcch:
			return "8:gcch:" + i.ID
		default:
			return "8:orgid:" + i.ID
		}
	default:
		return i.ID
	}
}

func (i Identifier) Validate() error {
	if i.ID == "" {
		return ErrIdentifierEmpty
	}
	return nil
}

// ParseKey is the inverse of Key for the prefixes Key produces.
func ParseKey(key string) Identifier {
	switch {
	case strings.HasPrefix(key, "4:"):
		return PhoneNumber(strings.TrimPrefix(key, "4:"))
	case strings.HasPrefix(key, "8:orgid:"):
		return TeamsUser(strings.TrimPrefix(key, "8:orgid:"), CloudPublic)
	case strings.HasPrefix(key, "8:dod:"):
		return TeamsUser(strings.TrimPrefix(key, "8:dod:"), CloudDod)
	case strings.HasPrefix(key, "8:gcch:"):
		return TeamsUser(strings.TrimPrefix(key, "8:gcch:"), CloudGcch)
	default:
		return CommunicationUser(key)
	}
}
