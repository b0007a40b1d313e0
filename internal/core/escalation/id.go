package escalation

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// IDPrefix marks escalations opened from an assessment.
	IDPrefix = "escalation-"
	// EmergencyIDPrefix marks escalations opened through the direct emergency entry point.
	EmergencyIDPrefix = "emergency-"
)

// NewID returns a fresh escalation id.
func NewID() string {
	return IDPrefix + uuid.NewString()
}

// NewEmergencyID returns a fresh id for a direct emergency escalation.
func NewEmergencyID() string {
	return EmergencyIDPrefix + uuid.NewString()
}

// IsEmergencyID reports whether id came from the direct emergency entry point.
func IsEmergencyID(id string) bool {
	return strings.HasPrefix(id, EmergencyIDPrefix)
}

// ValidID reports whether id has a known prefix followed by a uuid.
func ValidID(id string) bool {
	var token string
	switch {
	case strings.HasPrefix(id, IDPrefix):
		token = strings.TrimPrefix(id, IDPrefix)
	case strings.HasPrefix(id, EmergencyIDPrefix):
		token = strings.TrimPrefix(id, EmergencyIDPrefix)
	default:
		return false
	}
	_, err := uuid.Parse(token)
	return err == nil
}
