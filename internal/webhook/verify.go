// Package webhook implements webhook signature verification, topic dispatch
// and subscription reconciliation for the commerce platform integration.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifySignature checks the authenticity of an inbound webhook delivery.
// It computes HMAC-SHA256 over the raw, undecoded request body with the
// shared app secret, base64-encodes the digest and compares it against the
// signature header value in constant time.
//
// The body must be the exact bytes received on the wire: decoding and
// re-encoding JSON can change the byte sequence and invalidate the signature.
func VerifySignature(body []byte, secret, receivedSignature string) bool {
	if len(body) == 0 || secret == "" || receivedSignature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(receivedSignature))
}

// Sign computes the signature value the platform would send for body.
// Used by tests and the local delivery tooling.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
