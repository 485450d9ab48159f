package domain

import (
	"time"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

type RunRecord struct {
	ID             string     `db:"id" json:"id"`
	Month          string     `db:"month" json:"month"`
	ReportID       ReportID   `db:"report_id" json:"report_id"`
	RawKey         string     `db:"raw_key" json:"raw_key,omitempty"`
	TransformedKey string     `db:"transformed_key" json:"transformed_key,omitempty"`
	RowsIn         int        `db:"rows_in" json:"rows_in"`
	RowsOut        int        `db:"rows_out" json:"rows_out"`
	Status         RunStatus  `db:"status" json:"status"`
	Error          string     `db:"error" json:"error,omitempty"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	FinishedAt     *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

type RunFilter struct {
	Month string
	Limit int
}
