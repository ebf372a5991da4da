package checkout

import "errors"

var (
	// ErrVerificationFailed indicates the attestation signature did not match.
	// Nothing is mutated; the caller surfaces "payment verification failed".
	ErrVerificationFailed = errors.New("payment verification failed")
	// ErrAmountMismatch indicates the paid order amount does not equal the
	// price of the entitlement being granted.
	ErrAmountMismatch = errors.New("order amount does not match price")
	// ErrProvider indicates the payment provider call failed. It is surfaced
	// as "try again"; retries are manual, never automatic.
	ErrProvider = errors.New("payment provider unavailable")
	// ErrPlanNotPurchasable indicates an unknown plan or the free tier.
	ErrPlanNotPurchasable = errors.New("plan cannot be purchased")
)
