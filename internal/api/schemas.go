package api

import (
	"time"

	"github.com/jeovahfialho/t212-digrin/internal/domain"
	"github.com/jeovahfialho/t212-digrin/internal/service"
)

type RunRequest struct {
	Month string `json:"month" validate:"omitempty,datetime=2006-01" example:"2024-05"`
}

type RunsQuery struct {
	Month string `query:"month" validate:"omitempty,datetime=2006-01"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=1000"`
}

// RunState is the in-memory view of the latest run started through the API.
type RunState struct {
	Month      string             `json:"month"`
	Status     domain.RunStatus   `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Result     *service.RunResult `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type RunsResponse struct {
	Runs  []domain.RunRecord `json:"runs"`
	Count int                `json:"count"`
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	Details   []string  `json:"details,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
