// Package signature computes and checks the HMAC the payment gateway attaches
// to checkout callbacks.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Compute returns hex(HMAC-SHA256(secret, gatewayOrderID + "|" + gatewayPaymentID)).
func Compute(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig matches the expected signature. The comparison
// runs in constant time with respect to the signature contents.
func Verify(secret, gatewayOrderID, gatewayPaymentID, sig string) bool {
	expected := Compute(secret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(sig))
}
