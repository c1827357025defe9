// SPDX-License-Identifier: GPL-3.0-or-later

package sockpipe

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpanID(t *testing.T) {
	spanID := NewSpanID()

	parsed, err := uuid.Parse(spanID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

// Bridges get distinct span IDs.
func TestNewSpanIDPerBridge(t *testing.T) {
	cfg := NewConfig()
	seen := make(map[string]struct{})

	for range 16 {
		b := NewBridge(cfg, nil, DefaultSLogger())
		_, duplicate := seen[b.ID()]
		require.False(t, duplicate, "duplicate bridge ID: %s", b.ID())
		seen[b.ID()] = struct{}{}
	}
}
