package model

import "time"

// Platform identifies the third-party service a credential logs into.
type Platform string

const (
	PlatformNetflix     Platform = "netflix"
	PlatformDisney      Platform = "disney"
	PlatformHBO         Platform = "hbo"
	PlatformPrime       Platform = "prime"
	PlatformParamount   Platform = "paramount"
	PlatformStarz       Platform = "starz"
	PlatformApple       Platform = "apple"
	PlatformHulu        Platform = "hulu"
	PlatformPeacock     Platform = "peacock"
	PlatformCrunchyroll Platform = "crunchyroll"
	PlatformFunimation  Platform = "funimation"
	PlatformYouTube     Platform = "youtube"
	PlatformSpotify     Platform = "spotify"
	PlatformDeezer      Platform = "deezer"
	PlatformTidal       Platform = "tidal"
	PlatformOther       Platform = "other"
)

// CatalogEntry is a code with its human-readable label.
type CatalogEntry struct {
	Code  string
	Label string
}

// Platforms lists every supported platform in display order.
var Platforms = []CatalogEntry{
	{string(PlatformNetflix), "Netflix"},
	{string(PlatformDisney), "Disney+"},
	{string(PlatformHBO), "HBO Max"},
	{string(PlatformPrime), "Amazon Prime"},
	{string(PlatformParamount), "Paramount+"},
	{string(PlatformStarz), "Starz"},
	{string(PlatformApple), "Apple TV+"},
	{string(PlatformHulu), "Hulu"},
	{string(PlatformPeacock), "Peacock"},
	{string(PlatformCrunchyroll), "Crunchyroll"},
	{string(PlatformFunimation), "Funimation"},
	{string(PlatformYouTube), "YouTube Premium"},
	{string(PlatformSpotify), "Spotify"},
	{string(PlatformDeezer), "Deezer"},
	{string(PlatformTidal), "Tidal"},
	{string(PlatformOther), "Other"},
}

// Valid reports whether p is in the platform catalog.
func (p Platform) Valid() bool {
	for _, e := range Platforms {
		if e.Code == string(p) {
			return true
		}
	}
	return false
}

// CredentialStatus is the lifecycle state of the third-party account.
type CredentialStatus string

const (
	StatusActive   CredentialStatus = "active"
	StatusInactive CredentialStatus = "inactive"
	StatusPending  CredentialStatus = "pending"
	StatusExpired  CredentialStatus = "expired"
)

// Statuses lists every credential status in display order.
var Statuses = []CatalogEntry{
	{string(StatusActive), "Active"},
	{string(StatusInactive), "Inactive"},
	{string(StatusPending), "Pending"},
	{string(StatusExpired), "Expired"},
}

// Valid reports whether s is a known status.
func (s CredentialStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending, StatusExpired:
		return true
	}
	return false
}

// Credential is a stored third-party login owned by exactly one account.
// Secret holds plaintext only in memory; adapters seal it at rest.
type Credential struct {
	ID              int64
	Label           string
	Platform        Platform
	ServiceEmail    string
	ServiceUsername string
	Secret          string
	Photo           string
	Notes           string // Markdown.
	Status          CredentialStatus
	CreatedAt       time.Time
	ExpiresAt       *time.Time // Date only; time-of-day is ignored.
	LastAccessedAt  *time.Time
	OwnerID         int64
	Active          bool
}

// IsOwnedBy returns true if accountID owns the credential.
func (c Credential) IsOwnedBy(accountID int64) bool {
	return c.OwnerID == accountID
}

// IsExpired returns true if an expiry date is set and now's calendar date is
// after it. Both dates are compared in UTC.
func (c Credential) IsExpired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	y1, m1, d1 := now.UTC().Date()
	y2, m2, d2 := c.ExpiresAt.UTC().Date()
	today := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	expiry := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return today.After(expiry)
}

// CredentialPatch holds optional credential field updates. Nil fields are
// left unchanged; ClearExpiry removes the expiry date.
type CredentialPatch struct {
	Label           *string
	Platform        *Platform
	ServiceEmail    *string
	ServiceUsername *string
	Secret          *string
	Photo           *string
	Notes           *string
	Status          *CredentialStatus
	ExpiresAt       *time.Time
	ClearExpiry     bool
}
