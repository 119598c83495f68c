package redis

import "strings"

const defaultKeyPrefix = "roastery"

// Keyspace builds namespaced redis keys. Blank parts are dropped so a missing
// id never produces a key ending in "::".
type Keyspace struct {
	prefix string
}

func NewKeyspace(prefix string) Keyspace {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return Keyspace{prefix: prefix}
}

// CartKey holds a shopper's cart document.
func (k Keyspace) CartKey(userID string) string { return k.join("cart", userID) }

// IdempotencyKey stores the first response for a retried request.
func (k Keyspace) IdempotencyKey(scope, id string) string { return k.join("idempotency", scope, id) }

func (k Keyspace) RateLimitKey(scope string) string { return k.join("rate_limit", scope) }

// AccessSessionKey maps an access token id to its refresh token.
func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.join("session", "access", accessID)
}

func (k Keyspace) LockKey(name string) string { return k.join("lock", name) }

func (k Keyspace) join(parts ...string) string {
	prefix := k.prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	var b strings.Builder
	b.WriteString(prefix)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
