package feed

import "time"

// maxReconnectDelay caps the exponential backoff between reconnect attempts.
const maxReconnectDelay = 300 * time.Second

// reconnectDelay returns the delay before reconnect attempt n (1-based):
// base * 2^(n-1), capped at maxReconnectDelay.
func reconnectDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}
