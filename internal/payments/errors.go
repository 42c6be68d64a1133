package payments

import "fmt"

// ConfigurationError means no payable wallet is configured for any rail.
// Maps to HTTP 503: the request cannot be charged, which is a server-side
// misconfiguration rather than a client fault.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "payments not configured: " + e.Reason
}

// PaymentRequiredError is the expected control-flow signal when a request
// arrives without a PAYMENT-SIGNATURE header. It carries the full x402
// challenge so handlers can emit the PAYMENT-REQUIRED header unchanged.
type PaymentRequiredError struct {
	Challenge Challenge
}

func (e *PaymentRequiredError) Error() string {
	return "payment required"
}

// VerificationError means the facilitator rejected the presented payment
// signature. The facilitator's response body is preserved verbatim in Detail.
type VerificationError struct {
	Detail string
}

func (e *VerificationError) Error() string {
	return "payment verification failed: " + e.Detail
}

// FacilitatorError is a network-level failure reaching the facilitator.
// Verification is never retried at this layer: the facilitator gives no
// idempotency guarantee, and a silent double-verify could double-charge.
type FacilitatorError struct {
	Err error
}

func (e *FacilitatorError) Error() string {
	return fmt.Sprintf("could not reach payment facilitator: %v", e.Err)
}

func (e *FacilitatorError) Unwrap() error { return e.Err }

// HTTPStatus maps a gateway error to the response status a route handler
// should return.
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ConfigurationError:
		return 503
	case *PaymentRequiredError, *VerificationError:
		return 402
	case *FacilitatorError:
		return 502
	}
	return 500
}
