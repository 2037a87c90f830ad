package csvfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	recs, err := Decode(strings.NewReader("\ufeffTeleTrader Name;ISIN\nOTP;HU0000061726\nMOL; HU0000153937\n"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "OTP", recs[0]["TeleTrader Name"])
	assert.Equal(t, "HU0000153937", recs[1]["ISIN"])
}

func TestDecode_Empty(t *testing.T) {
	recs, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDecode_FieldCountMismatch(t *testing.T) {
	_, err := Decode(strings.NewReader("a;b\n1;2;3\n"))
	assert.Error(t, err)
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, Write(path, []string{"A", "B"}, [][]string{{"1", "x;y"}, {"2", ""}}))

	recs, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []Record{{"A": "1", "B": "x;y"}, {"A": "2", "B": ""}}, recs)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWrite_MissingDir(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "nope", "out.csv"), []string{"A"}, nil)
	assert.Error(t, err)
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
