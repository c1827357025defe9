// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSLogger(t *testing.T) {
	logger := DefaultSLogger()

	// Should return a non-nil logger
	assert.NotNil(t, logger)

	// Should be able to call Debug and Info without panic (discards output)
	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
}

// The capturing logger used by the tests records every event.
func TestCapturingLogger(t *testing.T) {
	logger, records := newCapturingLogger()
	var _ SLogger = logger

	logger.Debug("first", slog.Int("n", 1))
	logger.Info("second")

	assert.Equal(t, []string{"first", "second"}, recordMessages(*records))
}
