// SPDX-License-Identifier: Unlicense OR MIT

package surface

import (
	"log/slog"

	"gioui.org/surfshare/internal/log"
)

// SetLogger sets the logger of the surface packages and backends.
// Logging is disabled by default; a nil l disables it again.
func SetLogger(l *slog.Logger) {
	log.Set(l)
}
