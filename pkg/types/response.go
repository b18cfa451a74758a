// Package types holds the JSON envelopes shared by both APIs and their clients.
package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body. Retryable tells clients whether
// repeating the same request can succeed.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Envelope decodes either shape on the client side.
type Envelope[T any] struct {
	Data  *T        `json:"data"`
	Error *APIError `json:"error"`
}
