package model

import "time"

// Role is an account's delegation tier.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	}
	return false
}

// Rank orders roles by privilege: Admin > Manager > Member. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// Account is a principal in the hierarchy. ParentID links the ownership tree;
// CreatedByID is an audit link that may point at a deleted account.
type Account struct {
	ID          int64
	DisplayName string
	Email       string
	SecretHash  string
	Role        Role
	ParentID    *int64
	CreatedByID *int64
	Photo       string // Opaque blob reference; empty when unset.
	Active      bool
	CreatedAt   time.Time
}

// IsRoot returns true if the account has no parent.
func (a Account) IsRoot() bool {
	return a.ParentID == nil
}

// HasParent returns true if the account's parent is id.
func (a Account) HasParent(id int64) bool {
	return a.ParentID != nil && *a.ParentID == id
}

// WasCreatedBy returns true if the account's creator is id.
func (a Account) WasCreatedBy(id int64) bool {
	return a.CreatedByID != nil && *a.CreatedByID == id
}

// NewAccount carries the fields needed to persist a new account. SecretHash
// must already be hashed; stores never hash.
type NewAccount struct {
	DisplayName string
	Email       string
	SecretHash  string
	Role        Role
	ParentID    *int64
	CreatedByID *int64
	Photo       string
	CreatedAt   time.Time
}

// AccountPatch holds optional account field updates. Nil fields are left unchanged.
type AccountPatch struct {
	DisplayName *string
	Email       *string
	Role        *Role
	Photo       *string
}

// IsEmpty returns true if the patch changes nothing.
func (p AccountPatch) IsEmpty() bool {
	return p.DisplayName == nil && p.Email == nil && p.Role == nil && p.Photo == nil
}
