package model

import "time"

// AccessLevel is the right granted by a share, or derived for an account
// relative to a credential. Owner and None never appear on a Share row.
type AccessLevel string

const (
	AccessNone      AccessLevel = "none"
	AccessRead      AccessLevel = "read"
	AccessReadWrite AccessLevel = "read_write"
	AccessAdmin     AccessLevel = "admin"
	AccessOwner     AccessLevel = "owner"
)

// Grantable reports whether l may be stored on a Share.
func (l AccessLevel) Grantable() bool {
	switch l {
	case AccessRead, AccessReadWrite, AccessAdmin:
		return true
	}
	return false
}

// Share grants a non-owner account access to a credential.
type Share struct {
	ID           int64
	CredentialID int64
	GranteeID    int64
	Level        AccessLevel
	SharedAt     time.Time
	Active       bool
}
