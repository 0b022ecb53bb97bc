// Package models defines the quota module's domain types.
package models

import (
	"cardmill/pkg/domain"
)

// DenyReason explains why a consumption attempt was denied.
type DenyReason string

const (
	// ReasonOutsideWindow: the campaign window has not started or has fully
	// elapsed and the policy runs in hard-window mode.
	ReasonOutsideWindow DenyReason = "outside_window"
	// ReasonQuotaExhausted: the effective ceiling for the date is used up.
	ReasonQuotaExhausted DenyReason = "quota_exhausted"
	// ReasonStorageUnavailable: the counter store failed; the gate fails
	// closed rather than risk a paid overshoot.
	ReasonStorageUnavailable DenyReason = "storage_unavailable"
)

// Decision is the outcome of a single Gate.TryConsume call.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`

	Date domain.Date `json:"date"`

	// Used is the usage counted against the effective ceiling after this
	// decision: grants include the consumed unit, denials leave it unchanged.
	Used      int  `json:"used"`
	Ceiling   int  `json:"ceiling"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited,omitempty"`
}

// CounterRecord is one persisted per-date usage counter. Records are created
// on first consumption for a date and never deleted, so the table doubles as
// an append-only usage history for cumulative accounting and audits.
type CounterRecord struct {
	Date  domain.Date `json:"date"`
	Count int         `json:"count"`
}
