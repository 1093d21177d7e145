package instance

import (
	"os"

	"github.com/bookswap/bookswap-backend/pkg/env"
)

// GetID identifies this process in logs and lock ownership.
// BOOKSWAP_INSTANCE_ID wins, then the host name, then "local".
func GetID() string {
	if id := env.Get("BOOKSWAP_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
