package domain

import (
	"errors"
	"fmt"
	"time"
)

const MonthLayout = "2006-01"

var (
	ErrInvalidDateRange = errors.New("intervalo de datas inválido")
	ErrInvalidMonth     = errors.New("mês inválido (use YYYY-MM)")
)

// DateRange is a reporting period [from, to). Fields are unexported so a
// constructed range cannot be changed.
type DateRange struct {
	from time.Time
	to   time.Time
}

func NewDateRange(from, to time.Time) (DateRange, error) {
	if !to.After(from) {
		return DateRange{}, fmt.Errorf("%w: %s não é posterior a %s",
			ErrInvalidDateRange, to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	return DateRange{from: from, to: to}, nil
}

// MonthRange parses YYYY-MM and returns the calendar month from its first day
// to the first day of the following month, in UTC.
func MonthRange(month string) (DateRange, error) {
	start, err := time.Parse(MonthLayout, month)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	return NewDateRange(start, start.AddDate(0, 1, 0))
}

// PreviousMonth returns the YYYY-MM of the month before now.
func PreviousMonth(now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -1, 0).Format(MonthLayout)
}

func (r DateRange) From() time.Time { return r.from }
func (r DateRange) To() time.Time   { return r.to }

func (r DateRange) Month() string {
	return r.from.Format(MonthLayout)
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.from.Format(time.DateOnly), r.to.Format(time.DateOnly))
}

// ReportID is the handle returned by the reporting service when it accepts a
// report request. Zero means the request was not accepted.
type ReportID int64

func (id ReportID) Valid() bool {
	return id > 0
}

type ReportStatus string

const (
	StatusQueued     ReportStatus = "Queued"
	StatusProcessing ReportStatus = "Processing"
	StatusRunning    ReportStatus = "Running"
	StatusCanceled   ReportStatus = "Canceled"
	StatusFailed     ReportStatus = "Failed"
	StatusFinished   ReportStatus = "Finished"
)

func (s ReportStatus) IsFinished() bool {
	return s == StatusFinished
}

// IsFailed reports whether the service gave up on the report. Any value the
// service adds later is treated as still pending.
func (s ReportStatus) IsFailed() bool {
	return s == StatusFailed || s == StatusCanceled
}

type DataIncluded struct {
	IncludeDividends    bool `json:"includeDividends"`
	IncludeInterest     bool `json:"includeInterest"`
	IncludeOrders       bool `json:"includeOrders"`
	IncludeTransactions bool `json:"includeTransactions"`
}

func AllData() DataIncluded {
	return DataIncluded{
		IncludeDividends:    true,
		IncludeInterest:     true,
		IncludeOrders:       true,
		IncludeTransactions: true,
	}
}

type ReportStatusEntry struct {
	ReportID     ReportID     `json:"reportId"`
	TimeFrom     time.Time    `json:"timeFrom"`
	TimeTo       time.Time    `json:"timeTo"`
	DataIncluded DataIncluded `json:"dataIncluded"`
	Status       ReportStatus `json:"status"`
	DownloadLink string       `json:"downloadLink,omitempty"`
}

// FindLatest returns the most recently appended entry for id. The listing is
// an append-only log, so the last match wins.
func FindLatest(entries []ReportStatusEntry, id ReportID) (ReportStatusEntry, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].ReportID == id {
			return entries[i], true
		}
	}
	return ReportStatusEntry{}, false
}
