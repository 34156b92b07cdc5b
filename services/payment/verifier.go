package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureVerifier checks gateway callbacks signed as
// hex(HMAC_SHA256(orderId + "|" + paymentId, secret)).
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Sign returns the expected signature for the pair.
func (v *SignatureVerifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. An empty secret never verifies.
func (v *SignatureVerifier) Verify(orderID, paymentID, signature string) bool {
	if len(v.secret) == 0 || signature == "" {
		return false
	}
	expected := v.Sign(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
