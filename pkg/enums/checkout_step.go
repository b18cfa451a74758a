package enums

import "fmt"

// CheckoutStep is the current position of a checkout wizard session.
type CheckoutStep string

const (
	CheckoutStepShipping   CheckoutStep = "shipping"
	CheckoutStepPayment    CheckoutStep = "payment"
	CheckoutStepSubmitting CheckoutStep = "submitting"
	CheckoutStepDone       CheckoutStep = "done"
)

var validCheckoutSteps = []CheckoutStep{
	CheckoutStepShipping,
	CheckoutStepPayment,
	CheckoutStepSubmitting,
	CheckoutStepDone,
}

// String implements fmt.Stringer.
func (c CheckoutStep) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutStep.
func (c CheckoutStep) IsValid() bool {
	for _, candidate := range validCheckoutSteps {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutStep converts raw input into a CheckoutStep.
func ParseCheckoutStep(value string) (CheckoutStep, error) {
	for _, candidate := range validCheckoutSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout step %q", value)
}
