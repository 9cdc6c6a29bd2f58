// Package entity defines the core domain entities of the alerting daemon.
package entity

import (
	"github.com/google/uuid"
)

// ID is a type alias for uuid.UUID representing a universally unique identifier.
type ID = uuid.UUID

// alertNamespace is a fixed, arbitrary namespace used to derive deterministic
// alert identifiers. It never changes across deploys: the stability of
// generated ids across restarts depends on it.
var alertNamespace = uuid.NameSpaceOID

// GenerateAlertID derives a stable, collision-resistant identifier for an
// alert from its host and name. Calling it twice with the same arguments
// always yields the same id, which is what lets a CDC update be correlated
// with the alert it replaces.
func GenerateAlertID(hostUUID, name string) ID {
	return uuid.NewSHA1(alertNamespace, []byte(hostUUID+"/"+name))
}

// NewID generates a new random identifier, used for incidents.
func NewID() ID {
	return uuid.New()
}

// ParseID parses a string representation into an ID.
func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}
