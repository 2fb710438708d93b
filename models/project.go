package models

import (
	"encoding/json"
	"time"
)

// Project groups submissions collected for one form definition. RemoteID is
// empty until the project has been registered with the remote store.
type Project struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	RemoteID     string          `json:"remoteId,omitempty"`
	Definition   json.RawMessage `json:"definition,omitempty"`
	LastSyncedAt *time.Time      `json:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Registered reports whether the project is known to the remote store.
func (p Project) Registered() bool {
	return p.RemoteID != ""
}

// ProjectDefinition is what the remote adapter needs to create or update a
// project. A non-empty RemoteID requests an update.
type ProjectDefinition struct {
	RemoteID   string          `json:"remoteId,omitempty"`
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition,omitempty"`
}

// ToDefinition returns the remote registration request for p.
func (p Project) ToDefinition() ProjectDefinition {
	return ProjectDefinition{RemoteID: p.RemoteID, Name: p.Name, Definition: p.Definition}
}

// RemoteAck is the remote store's confirmation of a submitted record.
type RemoteAck struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// RemoteBatch is one pull from the remote store. Cursor is the remote
// store's own clock at read time and is zero when the remote did not report
// it.
type RemoteBatch struct {
	Records []Record
	Cursor  time.Time
}
