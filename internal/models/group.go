package models

import "time"

// Group is the backend-owned view of a community group. The gateway keeps a
// read-mostly cached copy refreshed by the directory poller.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPrivate   bool      `json:"isPrivate"`
	MemberCount int       `json:"memberCount"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GroupMember is one membership record of a group.
type GroupMember struct {
	UserID   string    `json:"userId"`
	Nickname string    `json:"nickname"`
	JoinedAt time.Time `json:"joinedAt"`
}
