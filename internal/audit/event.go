// Package audit records every TQL query run against a vault: in memory for
// the `stats` command, to Kafka for live tailing and to PostgreSQL for
// `history`. Recording never fails a query; sink errors are only logged.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event describes one query.
type Event struct {
	ID        string    `json:"id"`
	Profile   string    `json:"profile"`
	Vault     string    `json:"vault,omitempty"`
	Query     string    `json:"query"`
	Matches   int       `json:"matches"`
	LatencyMs float64   `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps a new event with an id and the current time.
func NewEvent(profile, vault, query string) Event {
	return Event{
		ID:        uuid.NewString(),
		Profile:   profile,
		Vault:     vault,
		Query:     query,
		Timestamp: time.Now().UTC(),
	}
}

// Failed reports whether the query ended in an error.
func (e Event) Failed() bool {
	return e.Error != ""
}
