package model

import "time"

// RoleShare is one slice of the role distribution.
type RoleShare struct {
	Role       string  `json:"role"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// MonthPoint is a calendar month bucket ("2025-01") of a growth series.
type MonthPoint struct {
	Month  string  `bson:"_id" json:"month"`
	Count  int64   `bson:"count" json:"count"`
	Amount float64 `bson:"amount" json:"amount,omitempty"`
}

// Totals are the headline numbers on the admin dashboard.
type Totals struct {
	Users           int64   `json:"totalUsers"`
	Tuitions        int64   `json:"totalTuitions"`
	AssignedTuition int64   `json:"assignedTuitions"`
	Revenue         float64 `json:"totalRevenue"`
	SuccessRate     float64 `json:"successRate"`
}

// Activity kinds in the recent activity feed.
const (
	ActivityUser    = "user"
	ActivityTuition = "tuition"
	ActivityPayment = "payment"
)

// Activity is one entry of the recent activity feed.
type Activity struct {
	Type   string    `json:"type"`
	Title  string    `json:"title"`
	Actor  string    `json:"actor"`
	Amount float64   `json:"amount,omitempty"`
	Date   time.Time `json:"date"`
}

// AdminStats is the payload of GET /admin-stats.
type AdminStats struct {
	Totals           Totals       `json:"totals"`
	RoleDistribution []RoleShare  `json:"roleDistribution"`
	UserGrowth       []MonthPoint `json:"userGrowth"`
	TuitionGrowth    []MonthPoint `json:"tuitionGrowth"`
	RevenueGrowth    []MonthPoint `json:"revenueGrowth"`
	RecentActivity   []Activity   `json:"recentActivity"`
}
