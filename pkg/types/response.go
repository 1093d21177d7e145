// Package types holds the JSON envelopes shared by the API and its clients.
package types

// Envelope wraps every successful response body.
type Envelope struct {
	Data any `json:"data"`
}

// ErrorBody is rendered under "error". Details carries business-rule context
// such as availableQuantity or currentStatus.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
