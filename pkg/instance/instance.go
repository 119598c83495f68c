package instance

import (
	"os"

	"github.com/threshingfloor/roastery-backend/pkg/env"
)

// ID names the running process in logs and lock tokens. An explicit
// ROASTERY_INSTANCE_ID wins, then the platform dyno name, then the hostname.
func ID() string {
	if id := env.First("ROASTERY_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
