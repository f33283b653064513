package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the body of every non-2xx response. RequestID matches the
// X-Request-Id response header.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
