/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Monetary
  amounts cross the boundary as decimal strings ("538.00"); internally
  everything is integer cents.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/lohnwerk/minijob-engine/billing"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	StartDay   int    `json:"start_day"`
	EndDay     int    `json:"end_day"`
	HourlyRate string `json:"hourly_rate"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	StartDay   int    `json:"start_day"`
	EndDay     int    `json:"end_day"`
	HourlyRate string `json:"hourly_rate"`
}

// EntryDTO represents a work entry.
type EntryDTO struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Minutes    int    `json:"minutes"`
	Earnings   string `json:"earnings"`
	Note       string `json:"note,omitempty"`
}

// CreateEntryRequest is the request to record work.
type CreateEntryRequest struct {
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
	Note    string `json:"note,omitempty"`
}

// CapPeriodDTO represents a cap period in API responses.
type CapPeriodDTO struct {
	ID         string  `json:"id"`
	Limit      string  `json:"limit"`
	ValidFrom  string  `json:"valid_from"`
	ValidUntil *string `json:"valid_until,omitempty"`
	CreatedBy  string  `json:"created_by,omitempty"`
	Active     bool    `json:"active"`
}

// CreateCapPeriodRequest is the request to insert a cap period.
type CreateCapPeriodRequest struct {
	Limit      string  `json:"limit"`
	ValidFrom  string  `json:"valid_from"`
	ValidUntil *string `json:"valid_until,omitempty"`
	CreatedBy  string  `json:"created_by,omitempty"`
}

// AdjustmentDTO reports an automatic neighbor adjustment.
type AdjustmentDTO struct {
	PeriodID      string  `json:"period_id"`
	PreviousUntil *string `json:"previous_until,omitempty"`
	NewUntil      *string `json:"new_until,omitempty"`
}

// CapPeriodResultDTO is the response to a timeline mutation.
type CapPeriodResultDTO struct {
	Period      *CapPeriodDTO   `json:"period,omitempty"`
	Adjustments []AdjustmentDTO `json:"adjustments,omitempty"`
}

// SummaryDTO is the payable/carry breakdown of one billing period.
type SummaryDTO struct {
	Label          string  `json:"label"`
	PeriodStart    string  `json:"period_start"`
	PeriodEnd      string  `json:"period_end"`
	CrossMonth     bool    `json:"cross_month"`
	CarryIn        string  `json:"carry_in"`
	PeriodTotal    string  `json:"period_total"`
	ActualEarnings string  `json:"actual_earnings"`
	Cap            *string `json:"cap,omitempty"`
	Paid           string  `json:"paid"`
	CarryOut       string  `json:"carry_out"`
	ExceedsLimit   bool    `json:"exceeds_limit"`
}

// YearReportDTO is twelve monthly summaries for one employee.
type YearReportDTO struct {
	EmployeeID string       `json:"employee_id"`
	Year       int          `json:"year"`
	Months     []SummaryDTO `json:"months"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e billing.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:         e.ID,
		Name:       e.Name,
		Email:      e.Email,
		StartDay:   e.StartDay,
		EndDay:     e.EndDay,
		HourlyRate: e.HourlyRate.String(),
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryDTO(e billing.Entry) EntryDTO {
	return EntryDTO{
		ID:         e.ID,
		EmployeeID: e.EmployeeID,
		Date:       e.Date.String(),
		Minutes:    e.Minutes,
		Earnings:   e.Earnings.String(),
		Note:       e.Note,
	}
}

func toCapPeriodDTO(p billing.CapPeriod) CapPeriodDTO {
	dto := CapPeriodDTO{
		ID:        p.ID,
		Limit:     p.Limit.String(),
		ValidFrom: p.ValidFrom.String(),
		CreatedBy: p.CreatedBy,
		Active:    p.Active,
	}
	if p.ValidUntil != nil {
		s := p.ValidUntil.String()
		dto.ValidUntil = &s
	}
	return dto
}

func toAdjustmentDTO(a billing.Adjustment) AdjustmentDTO {
	dto := AdjustmentDTO{PeriodID: a.PeriodID}
	if a.PreviousUntil != nil {
		s := a.PreviousUntil.String()
		dto.PreviousUntil = &s
	}
	if a.NewUntil != nil {
		s := a.NewUntil.String()
		dto.NewUntil = &s
	}
	return dto
}

func toSummaryDTO(s billing.Summary) SummaryDTO {
	dto := SummaryDTO{
		Label:          s.Period.Label(),
		PeriodStart:    s.Period.Start.String(),
		PeriodEnd:      s.Period.End.String(),
		CrossMonth:     s.Period.CrossMonth,
		CarryIn:        s.CarryIn.String(),
		PeriodTotal:    s.PeriodTotal.String(),
		ActualEarnings: s.ActualEarnings.String(),
		Paid:           s.Paid.String(),
		CarryOut:       s.CarryOut.String(),
		ExceedsLimit:   s.ExceedsLimit,
	}
	if s.Cap != nil {
		c := s.Cap.String()
		dto.Cap = &c
	}
	return dto
}
