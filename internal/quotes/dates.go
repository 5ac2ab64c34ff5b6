package quotes

import (
	"fmt"
	"math"
	"time"
)

// DefaultValidityDays is the suggested validity window for new quotes.
const DefaultValidityDays = 30

// DateValidation is the structured result of validating a quote's dates.
type DateValidation struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ExpiryState classifies how close a quote is to its validity deadline.
type ExpiryState string

const (
	ExpiryExpired ExpiryState = "expired"
	ExpirySoon    ExpiryState = "expiring_soon"
	ExpiryWarning ExpiryState = "expiring_warning"
	ExpiryValid   ExpiryState = "valid"
)

// ExpiryStatus carries the classification plus the remaining days.
type ExpiryStatus struct {
	Status   ExpiryState `json:"status"`
	DaysLeft int         `json:"days_left"`
	Message  string      `json:"message"`
}

// ValidateDates checks a quote's issue date and validity deadline. Errors
// block the save; warnings do not.
func ValidateDates(quoteDate, validUntil, now time.Time) DateValidation {
	var result DateValidation

	if quoteDate.IsZero() {
		result.Errors = append(result.Errors, "quote date is missing or unparseable")
	}
	if validUntil.IsZero() {
		result.Errors = append(result.Errors, "valid-until date is missing or unparseable")
	}
	if len(result.Errors) > 0 {
		return result
	}

	if !validUntil.After(quoteDate) {
		result.Errors = append(result.Errors, "valid-until must be after the quote date")
	} else if validUntil.Sub(quoteDate) < 24*time.Hour {
		result.Errors = append(result.Errors, "validity window must be at least one day")
	}

	if validUntil.Before(now) {
		result.Errors = append(result.Errors, "valid-until is already in the past")
	}

	if validUntil.Sub(quoteDate) > 365*24*time.Hour {
		result.Warnings = append(result.Warnings, "validity window exceeds one year")
	}
	if remaining := DaysLeft(validUntil, now); remaining >= 0 && remaining < 3 {
		result.Warnings = append(result.Warnings, "quote expires in fewer than three days")
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// DaysLeft returns the whole days remaining until the deadline, rounding up
// so that any remaining fraction of a day still counts.
func DaysLeft(validUntil, now time.Time) int {
	return int(math.Ceil(validUntil.Sub(now).Hours() / 24))
}

// ExpiryStatusOf classifies the remaining validity window. Boundaries are
// inclusive on the lower classification: 0 days is expired, 3 is
// expiring_soon, 7 is expiring_warning.
func ExpiryStatusOf(validUntil, now time.Time) ExpiryStatus {
	daysLeft := DaysLeft(validUntil, now)
	switch {
	case daysLeft <= 0:
		return ExpiryStatus{Status: ExpiryExpired, DaysLeft: daysLeft, Message: "quote has expired"}
	case daysLeft <= 3:
		return ExpiryStatus{Status: ExpirySoon, DaysLeft: daysLeft, Message: fmt.Sprintf("quote expires in %d day(s)", daysLeft)}
	case daysLeft <= 7:
		return ExpiryStatus{Status: ExpiryWarning, DaysLeft: daysLeft, Message: fmt.Sprintf("quote expires in %d days", daysLeft)}
	default:
		return ExpiryStatus{Status: ExpiryValid, DaysLeft: daysLeft, Message: fmt.Sprintf("quote valid for %d more days", daysLeft)}
	}
}

// SuggestValidUntil pre-populates the validity deadline from the quote date.
func SuggestValidUntil(quoteDate time.Time, defaultDays int) time.Time {
	if defaultDays <= 0 {
		defaultDays = DefaultValidityDays
	}
	return quoteDate.AddDate(0, 0, defaultDays)
}
