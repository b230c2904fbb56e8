package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SeriesStatusActive    = "active"
	SeriesStatusCompleted = "completed"
)

const (
	IntervalWeekly   = "weekly"
	IntervalBiweekly = "biweekly"
	IntervalMonthly  = "monthly"
)

type EscrowSeries struct {
	ID                 uuid.UUID  `json:"id"`
	MerchantID         uuid.UUID  `json:"merchant_id"`
	BusinessID         *uuid.UUID `json:"business_id,omitempty"`
	Status             string     `json:"status"`
	Interval           string     `json:"interval"`
	PeriodsCompleted   int        `json:"periods_completed"`
	MaxPeriods         *int       `json:"max_periods,omitempty"`
	NextChargeAt       time.Time  `json:"next_charge_at"`
	Coin               string     `json:"coin"`
	Amount             float64    `json:"amount"`
	DepositorAddress   *string    `json:"depositor_address,omitempty"`
	BeneficiaryAddress *string    `json:"beneficiary_address,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Exhausted reports whether charging one more period would exceed MaxPeriods.
func (s *EscrowSeries) Exhausted() bool {
	return s.MaxPeriods != nil && s.PeriodsCompleted+1 > *s.MaxPeriods
}

// NextCharge returns the charge time after from for the series interval.
// Monthly advances by one calendar month, clamped to the last day of the
// target month (Jan 31 -> Feb 28/29). Unknown intervals return ok=false.
func NextCharge(interval string, from time.Time) (time.Time, bool) {
	switch interval {
	case IntervalWeekly:
		return from.AddDate(0, 0, 7), true
	case IntervalBiweekly:
		return from.AddDate(0, 0, 14), true
	case IntervalMonthly:
		y, m, d := from.Date()
		firstOfTarget := time.Date(y, m+1, 1, 0, 0, 0, 0, from.Location())
		lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
		if d > lastDay {
			d = lastDay
		}
		h, min, sec := from.Clock()
		return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, h, min, sec, from.Nanosecond(), from.Location()), true
	}
	return time.Time{}, false
}
