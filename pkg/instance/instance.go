package instance

import (
	"os"

	"github.com/angelmondragon/platecost-backend/pkg/env"
)

// GetID identifies this process in distributed guards and logs. It prefers
// PLATECOST_INSTANCE_ID, then the platform dyno name, then the hostname.
func GetID() string {
	if id := env.First("PLATECOST_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "platecost-0"
}
