package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSnapshot(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.toml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestRun_PrintsStatusLines(t *testing.T) {
	path := writeSnapshot(t, `
locale = "en"

[context]
apartment_count = 0

[[meters]]
name = "Water"
scope = "building"
unit = "m3"
distribution_method = "per_apartment"
price_per_unit = "2"

[[meters]]
name = "Gas"
scope = "building"
unit = "m3"
distribution_method = "per_consumption"
price_per_unit = "1"

[[readings]]
meter = "Water"
current = "10"
`)
	var out bytes.Buffer

	require.NoError(t, run(path, &out))

	text := out.String()
	assert.Contains(t, text, "Water")
	assert.Contains(t, text, "€20.00")
	assert.Contains(t, text, "pending submission")
	assert.Contains(t, text, "Total: €20.00 (1 pending)")
	assert.Contains(t, text, "warning: Water: apartment count missing")
}

func TestRun_BadInput(t *testing.T) {
	path := writeSnapshot(t, "[[meters]]\nname = \"Water\"\nscope = \"street\"\n")

	err := run(path, &bytes.Buffer{})
	assert.Error(t, err)

	err = run(filepath.Join(t.TempDir(), "missing.toml"), &bytes.Buffer{})
	assert.Error(t, err)
}
