package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	r := New(map[string]string{"OTP": "HU0000061726"})

	assert.Equal(t, "HU0000061726", r.Resolve("OTP"))
	assert.Empty(t, r.Misses())

	assert.Equal(t, "Unknown Bank", r.Resolve("Unknown Bank"))
	assert.Equal(t, "Another", r.Resolve("Another"))
	assert.Equal(t, "Another", r.Resolve("Another"))
	assert.Equal(t, []string{"Another", "Unknown Bank"}, r.Misses())

	_, ok := r.Lookup("Nobody")
	assert.False(t, ok)
	assert.Len(t, r.Misses(), 2, "Lookup must not record misses")

	r.ResetMisses()
	assert.Empty(t, r.Misses())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ISIN.csv")
	content := "TeleTrader Name;ISIN\nOTP;HU0000061726\nMOL;HU0000153937\n;HU0000000000\nEmpty;\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "HU0000153937", r.Resolve("MOL"))
	assert.Equal(t, "Empty", r.Resolve("Empty"))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
