package hostfuncs

import (
	"log/slog"

	"github.com/tsuki-dev/tsuki-host/internal/resource"
)

// Capabilities is the host state one execution context exposes to its guest.
// A value is built per call and discarded with it; only Egress and KeyValue
// are shared between calls.
type Capabilities struct {
	// Table holds every handle issued during the call.
	Table *resource.Table

	// Egress performs outbound HTTP.
	Egress *NetworkEgress

	// Logger receives guest log records, pre-tagged with plugin and execution ids.
	Logger *slog.Logger

	// KeyValue is the process-wide store. Nil for generations without key-value.
	KeyValue *KeyValueStore
}

// NewCapabilities binds shared capability state to a fresh resource table.
func NewCapabilities(egress *NetworkEgress, kv *KeyValueStore, logger *slog.Logger) *Capabilities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capabilities{
		Table:    resource.NewTable(),
		Egress:   egress,
		Logger:   logger,
		KeyValue: kv,
	}
}

// Close drops every handle still held by the call.
func (c *Capabilities) Close() error {
	return c.Table.Close()
}
