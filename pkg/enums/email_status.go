package enums

import "fmt"

// EmailStatus is the delivery state of an order confirmation email.
type EmailStatus string

const (
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"
)

var validEmailStatuses = []EmailStatus{
	EmailStatusPending,
	EmailStatusSent,
	EmailStatusFailed,
}

// String implements fmt.Stringer.
func (e EmailStatus) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EmailStatus.
func (e EmailStatus) IsValid() bool {
	for _, candidate := range validEmailStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEmailStatus converts raw input into a EmailStatus.
func ParseEmailStatus(value string) (EmailStatus, error) {
	for _, candidate := range validEmailStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid email status %q", value)
}
