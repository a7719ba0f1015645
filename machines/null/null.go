// Package null implements the discard sink: writes always succeed and
// are thrown away, reads always error. Grounded on bingewatch's
// null-machine.c.
package null

import (
	"github.com/streamrig/streamrig/internal/filter"
	"github.com/streamrig/streamrig/internal/logging"
)

// Null is a write-only discard sink; reading from it is a usage error.
type Null struct {
	log *logging.Logger
}

// New creates a null machine.
func New() *Null {
	return &Null{log: logging.Default()}
}

// Read always fails: a null machine has no data to produce.
func (n *Null) Read(_ []byte, _ filter.BlockMode) (int, filter.Status) {
	n.log.Errorf("null: cannot read from a null machine")
	return 0, filter.StatusError
}

// Write discards buf and reports every byte consumed.
func (n *Null) Write(buf []byte, _ filter.BlockMode) (int, filter.Status) {
	return len(buf), filter.StatusSuccess
}

// Stop is a no-op; a null machine has no in-flight I/O to unblock.
func (n *Null) Stop() {}

// Close is a no-op; a null machine owns no resources.
func (n *Null) Close() error { return nil }
