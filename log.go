package cmdsched

import (
	"log/slog"

	"github.com/opentestharness/cmdsched/internal/core"
)

// SetLogger replaces the package-level logger used by cmdsched. This allows
// applications to integrate scheduler logging with their own logging
// infrastructure. The provided logger should already have any desired
// attributes; cmdsched will not add additional attributes.
//
// If l is nil, the logger resets to the default: slog.Default() with a
// "component" attribute, re-derived on the next log call and then cached.
//
// SetLogger is safe to call concurrently with other scheduler operations.
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
