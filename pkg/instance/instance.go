package instance

import "os"

// GetID returns the worker instance identifier or a default value.
// Deployments set DELGO_WORKER_ID so outbox publish logs can be traced
// back to a replica.
func GetID() string {
	if id := os.Getenv("DELGO_WORKER_ID"); id != "" {
		return id
	}
	return "publisher-0"
}
