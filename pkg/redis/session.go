package redis

import (
	"context"
	"time"
)

// StoreSession writes the serialized session record for sessionID.
func (c *Client) StoreSession(ctx context.Context, sessionID, record string, ttl time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.Set(ctx, c.SessionKey(sessionID), record, ttl).Err()
}

// GetSession returns redis.Nil once the session expired or was revoked.
func (c *Client) GetSession(ctx context.Context, sessionID string) (string, error) {
	return c.Get(ctx, c.SessionKey(sessionID))
}

func (c *Client) RevokeSession(ctx context.Context, sessionID string) error {
	return c.Del(ctx, c.SessionKey(sessionID))
}
