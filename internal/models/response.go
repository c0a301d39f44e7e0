package models

import "time"

type UploadResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	ImageURL string `json:"imageUrl"`
}

// StatusResponse is what polling clients see. Result is null while pending.
type StatusResponse struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Result     *string    `json:"result"`
	ImageURL   string     `json:"imageUrl"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	Score      string     `json:"score,omitempty"`
	Percent    string     `json:"percent,omitempty"`
	Feedback   string     `json:"feedback,omitempty"`
}

type NotifyFailedResponse struct {
	Error string `json:"error"`
	ID    string `json:"id"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
