package models

import "time"

// User is an application user as returned by the backend user endpoints.
type User struct {
	UserID            string    `json:"userId"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Email             string    `json:"email"`
	CommunityNickname string    `json:"communityNickname"`
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ContentItem is a wellness content entry managed from the console.
type ContentItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Body      string    `json:"body"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stats is the dashboard summary returned by the backend.
type Stats struct {
	TotalUsers    int `json:"totalUsers"`
	ActiveUsers   int `json:"activeUsers"`
	TotalGroups   int `json:"totalGroups"`
	TotalMessages int `json:"totalMessages"`
	TotalContent  int `json:"totalContent"`
	OpenReports   int `json:"openReports"`
}

// ChatStats is the per-day chat activity series used by the dashboard chart.
type ChatStats struct {
	Days     []string `json:"days"`
	Messages []int    `json:"messages"`
}
