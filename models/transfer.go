package models

import "time"

// TransferPayload is a signed, self-contained batch of submission snapshots
// moved between devices without network access. Count always equals
// len(Data) and Signature is the lowercase hex SHA-256 of the canonical
// encoding of every other field.
type TransferPayload struct {
	ProjectID   string    `json:"projectId"`
	ProjectName string    `json:"projectName"`
	Count       int       `json:"count"`
	Data        []Record  `json:"data"`
	GeneratedAt time.Time `json:"generatedAt"`
	Signature   string    `json:"signature"`
}
