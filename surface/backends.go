// SPDX-License-Identifier: Unlicense OR MIT

package surface

import (
	// Register the backends.
	_ "gioui.org/surfshare/internal/egl"
	_ "gioui.org/surfshare/internal/soft"
)
