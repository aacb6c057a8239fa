package model

import "time"

// AccessLog records one attempt to read a credential. Rows are append-only.
type AccessLog struct {
	ID            int64
	CredentialID  int64
	ActorID       int64
	At            time.Time
	SourceAddress string
	ClientInfo    string
	Succeeded     bool
	Note          string
}

// AccessMeta describes where a credential access came from.
type AccessMeta struct {
	SourceAddress string
	ClientInfo    string
}
