package instance

import (
	"os"

	"github.com/thiagodiasb91/drop-shop-site-sub000/pkg/env"
)

// GetID identifies the running process in logs: WORKER_ID when set, then
// the host name.
func GetID() string {
	if id := env.Get("WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
