package domain

// DeliveryRequest is the gateway request body
type DeliveryRequest struct {
	ToEmail      string `json:"to_email"`
	EmployeeName string `json:"employee_name"`
	OTPCode      string `json:"otp_code"`
}

// DeliveryResponse is the gateway response body
type DeliveryResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Provider string `json:"provider,omitempty"`
}

// FailureKind classifies why a delivery attempt failed
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureStatus       FailureKind = "status"
	FailureNetwork      FailureKind = "network"
	FailureTimeout      FailureKind = "timeout"
	FailureMalformed    FailureKind = "malformed"
	FailureRejected     FailureKind = "rejected"
	FailureUnconfigured FailureKind = "unconfigured"
)

// DeliveryResult is the outcome of a delivery after all attempts.
// Failure and Err describe the last failed attempt and are for diagnostics only.
type DeliveryResult struct {
	Success    bool        `json:"success"`
	Attempts   int         `json:"attempts"`
	Provider   string      `json:"provider,omitempty"`
	Message    string      `json:"message,omitempty"`
	StatusCode int         `json:"status_code,omitempty"`
	Failure    FailureKind `json:"failure,omitempty"`
	Err        error       `json:"-"`
}

// ProbeResult is the outcome of a gateway connectivity check
type ProbeResult struct {
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
}
