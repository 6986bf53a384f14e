package instance

import (
	"os"
	"strings"
)

const EnvWorkerID = "PRINTZ_WORKER_ID"

// ID names this process in logs. It prefers PRINTZ_WORKER_ID, then the
// hostname (the pod name on Kubernetes), then "worker-0".
func ID() string {
	if id := strings.TrimSpace(os.Getenv(EnvWorkerID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
