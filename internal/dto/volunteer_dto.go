package dto

import "time"

type CreateVolunteerRequest struct {
	Username string `json:"username"`
}

type VolunteerSummary struct {
	Username       string    `json:"username"`
	Gamma          int64     `json:"gamma"`
	Rank           string    `json:"rank"`
	RecentActivity int64     `json:"recent_gamma"`
	JoinTime       time.Time `json:"join_time"`
	AcceptedCoC    bool      `json:"accepted_coc"`
	Blocked        bool      `json:"blocked"`
}

type CheckActionRequest struct {
	Username string `json:"username"`
}
