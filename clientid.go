package mqttclient

import (
	"math/rand"
	"time"
)

const clientIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomString returns a pseudo-random alphanumeric string of length n. It
// is a pure function of the seed, so callers control reproducibility.
func randomString(seed int64, n int) string {
	rng := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	for i := range b {
		b[i] = clientIDCharset[rng.Intn(len(clientIDCharset))]
	}
	return string(b)
}

// randomClientID returns prefix followed by an 8-character random suffix,
// seeded from the current time. Used when no client id is configured; the
// MQTT recommendation caps client ids at 23 bytes, which a short prefix
// plus the suffix stays within.
func randomClientID(prefix string) string {
	return prefix + randomString(time.Now().UnixNano(), 8)
}
