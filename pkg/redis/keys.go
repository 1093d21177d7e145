package redis

import "strings"

const keyRoot = "bs"

// Key families under the bs: root.
const (
	familyIdempotency = "idempotency"
	familyRateLimit   = "rate_limit"
	familySession     = "session"
	familyLock        = "lock"
)

// joinKey builds bs:<family>:<part>... and drops blank parts.
func joinKey(family string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyRoot)
	b.WriteByte(':')
	b.WriteString(family)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(familyIdempotency, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return joinKey(familyRateLimit, scope)
}

func (c *Client) SessionKey(sessionID string) string {
	return joinKey(familySession, sessionID)
}

func (c *Client) LockKey(name string) string {
	return joinKey(familyLock, name)
}
