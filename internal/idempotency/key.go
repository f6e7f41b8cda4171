// Package idempotency recognizes duplicate broker deliveries so redelivered
// messages are acknowledged without being processed twice.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key derives the idempotency key for one delivery. An explicit message
// identifier wins; without one the key is a deterministic hash of the routing
// key and the raw payload bytes, so the same delivery always maps to the same
// key.
func Key(messageID, routingKey string, payload []byte) string {
	if messageID != "" {
		return messageID
	}

	h := sha256.New()
	h.Write([]byte(routingKey))
	h.Write([]byte("|"))
	h.Write(payload)

	return hex.EncodeToString(h.Sum(nil))
}
