package models

import "time"

// Session is an authenticated console session. The token is the opaque
// bearer token issued by the backend at login; the gateway stores it and
// never introspects it.
type Session struct {
	Token     string    `db:"token" json:"-"`
	AdminID   string    `db:"admin_id" json:"adminId"`
	Nickname  string    `db:"nickname" json:"nickname"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	LastSeen  time.Time `db:"last_seen" json:"lastSeen"`
}

// Identity is the operator identity injected into components that need it,
// instead of being read from ambient storage.
type Identity struct {
	AdminID  string
	Nickname string
}
