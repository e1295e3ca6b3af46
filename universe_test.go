package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadUniverseDedupsAndUppercases(t *testing.T) {
	p := writeFile(t, "universe.yaml", `
universe:
  - symbol: hbl
    base_price: 120.5
  - symbol: " LUCK "
  - symbol: HBL
  - symbol: ""
`)
	got, err := LoadUniverse(p)
	require.NoError(t, err)
	assert.Equal(t, []UniverseEntry{{Symbol: "HBL", BasePrice: 120.5}, {Symbol: "LUCK"}}, got)
}

func TestLoadUniverseErrors(t *testing.T) {
	_, err := LoadUniverse(writeFile(t, "empty.yaml", "universe: []\n"))
	assert.Error(t, err)

	_, err = LoadUniverse(writeFile(t, "bad.yaml", "universe: [\n"))
	assert.Error(t, err)
}

func TestResolveUniverseFallsBackToDefaults(t *testing.T) {
	got, err := ResolveUniverse(filepath.Join(t.TempDir(), "missing.yaml"), NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultUniverse(), got)

	got, err = ResolveUniverse("", NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.Equal(t, "HBL", got[0].Symbol)
	assert.Equal(t, defaultTickers, universeSymbols(got))
}
