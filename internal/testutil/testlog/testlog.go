// File: internal/testutil/testlog/testlog.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// zerolog loggers that write through the testing log.

package testlog

import (
	"testing"

	"github.com/rs/zerolog"
)

// New returns a debug-level logger that writes through t.Log.
func New(t testing.TB) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).
		Level(zerolog.DebugLevel).
		With().Str("test", t.Name()).Logger()
}
