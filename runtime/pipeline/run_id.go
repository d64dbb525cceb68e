package pipeline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// generateRunID returns a per-turn identifier used to correlate every model
// call made while answering one Ask with the turn's logs and traces.
//
// The identifier is prefixed with a normalized session ID to improve
// observability in logs, metrics, and tracing without sacrificing
// uniqueness.
func generateRunID(sessionID string) string {
	prefix := strings.ReplaceAll(sessionID, ".", "-")
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
