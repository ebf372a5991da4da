package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verifier checks provider payment attestations. The shared secret is
// process-wide configuration, read-only after startup.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier around the provider shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify recomputes the expected signature over "orderID|paymentID" and
// compares it with the supplied one in constant time. Malformed or empty
// inputs simply fail the comparison; this function never errors on
// attacker-controlled input.
func (v *Verifier) Verify(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := v.Sign(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the hex HMAC-SHA256 signature the provider would produce for
// an order/payment pair.
func (v *Verifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
