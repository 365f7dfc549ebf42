package model

import "time"

// IdentityKind is the kind of identity a blocklist entry matches.
type IdentityKind string

const (
	IdentityEmail IdentityKind = "email"
	IdentityIP    IdentityKind = "ip"
)

// BlocklistEntry blocks one identity on one site. Entries never expire.
type BlocklistEntry struct {
	SiteID    string       `json:"site_id"`
	Kind      IdentityKind `json:"kind"`
	Value     string       `json:"value"`
	Reason    string       `json:"reason"`
	Actor     string       `json:"actor,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
