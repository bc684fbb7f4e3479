// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0o600))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 150))
	assert.Equal(t, "a b", Excerpt("  a \n\t b ", 150))

	long := strings.Repeat("x", 200)
	got := Excerpt(long, 150)
	assert.Equal(t, strings.Repeat("x", 150)+"...", got)

	assert.Equal(t, "héé...", Excerpt("héééé", 3))
}

func TestTruncateWidth(t *testing.T) {
	assert.Equal(t, "hello", TruncateWidth("hello", 10))
	assert.Equal(t, "hell…", TruncateWidth("hello world", 5))
	assert.Equal(t, 4, Width("日本"))
	assert.LessOrEqual(t, Width(TruncateWidth("日本語のタイトル", 7)), 7)
	assert.Equal(t, "", TruncateWidth("x", 0))
}
