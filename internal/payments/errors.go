package payments

import "fmt"

// ErrorKind classifies a failed settlement.
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "invalid_input"
	KindCardDeclined      ErrorKind = "card_declined"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindGatewayTimeout    ErrorKind = "gateway_timeout"
)

// Error is the typed failure returned by Settle. Field is set for KindInvalidInput.
type Error struct {
	Kind  ErrorKind
	Field string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("payment %s: %s", e.Kind, e.Field)
	}
	return fmt.Sprintf("payment %s", e.Kind)
}

// UserMessage is the copy shown next to the payment form.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindInvalidInput:
		switch e.Field {
		case FieldCardNumber:
			return "Please enter a valid card number"
		case FieldExpiry:
			return "Please enter a valid expiry date (MM/YY)"
		case FieldCVV:
			return "Please enter a valid CVV"
		case FieldCardholderName:
			return "Please enter the cardholder name"
		}
		return "Please check your payment details"
	case KindCardDeclined:
		return "Your card was declined. Please try a different card."
	case KindInsufficientFunds:
		return "Insufficient funds. Please try a different card."
	case KindGatewayTimeout:
		return "The payment service did not respond in time. Please try again."
	}
	return "Payment failed. Please try again."
}

const (
	FieldMethod         = "method"
	FieldCardNumber     = "card_number"
	FieldExpiry         = "expiry"
	FieldCVV            = "cvv"
	FieldCardholderName = "cardholder_name"
)

func invalid(field string) *Error {
	return &Error{Kind: KindInvalidInput, Field: field}
}
