// Package analytics provides transformation usage event capture and processing.
package analytics

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// NewConsumerID builds a Redis consumer-group member name that is unique
// per process but still identifies the host in XINFO output.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// Fall back to the PID; uniqueness per host is enough.
		return fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), hex.EncodeToString(suffix))
}
