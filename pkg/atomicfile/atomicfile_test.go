package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type doc struct {
	Names []string `json:"names"`
}

func newTestFile(t *testing.T) *File {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "doc.json"), zap.NewNop())
}

func TestSave_CreatesFileWithoutLeftovers(t *testing.T) {
	f := newTestFile(t)

	require.NoError(t, f.Save(doc{Names: []string{"a"}}))

	got, src := Load(f, doc{})
	assert.Equal(t, SourcePrimary, src)
	assert.Equal(t, []string{"a"}, got.Names)

	_, err := os.Stat(f.tmpPath())
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
	_, err = os.Stat(f.BackupPath())
	assert.True(t, os.IsNotExist(err), "first save has nothing to back up")
}

func TestSave_KeepsPreviousVersionAsBackup(t *testing.T) {
	f := newTestFile(t)

	require.NoError(t, f.Save(doc{Names: []string{"first"}}))
	require.NoError(t, f.Save(doc{Names: []string{"second"}}))

	backup, err := decodeFile[doc](f.BackupPath())
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, backup.Names)

	current, src := Load(f, doc{})
	assert.Equal(t, SourcePrimary, src)
	assert.Equal(t, []string{"second"}, current.Names)
}

func TestLoad_MissingFileReturnsFallback(t *testing.T) {
	f := newTestFile(t)

	got, src := Load(f, doc{Names: []string{"default"}})
	assert.Equal(t, SourceMissing, src)
	assert.Equal(t, []string{"default"}, got.Names)
}

func TestLoad_CorruptFileRestoresBackup(t *testing.T) {
	f := newTestFile(t)
	require.NoError(t, f.Save(doc{Names: []string{"good"}}))
	require.NoError(t, f.Save(doc{Names: []string{"newer"}}))
	require.NoError(t, os.WriteFile(f.Path(), []byte(`{"names": [`), 0644))

	got, src := Load(f, doc{})
	assert.Equal(t, SourceBackup, src)
	assert.Equal(t, []string{"good"}, got.Names)

	// The primary file is rewritten from the backup
	again, src := Load(f, doc{})
	assert.Equal(t, SourcePrimary, src)
	assert.Equal(t, []string{"good"}, again.Names)
}

func TestLoad_CorruptFileAndBackupReturnsFallback(t *testing.T) {
	f := newTestFile(t)
	require.NoError(t, os.WriteFile(f.Path(), []byte("not json"), 0644))
	require.NoError(t, os.WriteFile(f.BackupPath(), []byte("also not json"), 0644))

	got, src := Load(f, doc{Names: []string{}})
	assert.Equal(t, SourceFallback, src)
	assert.Empty(t, got.Names)
}

func TestLoad_CorruptFileWithoutBackupReturnsFallback(t *testing.T) {
	f := newTestFile(t)
	require.NoError(t, os.WriteFile(f.Path(), []byte("{"), 0644))

	got, src := Load(f, map[string]int{"x": 1})
	assert.Equal(t, SourceFallback, src)
	assert.Equal(t, map[string]int{"x": 1}, got)
}

func TestSave_FailsWhenDirectoryIsAFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	f := New(filepath.Join(blocker, "doc.json"), zap.NewNop())
	assert.Error(t, f.Save(doc{}))
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "primary", SourcePrimary.String())
	assert.Equal(t, "backup", SourceBackup.String())
	assert.Equal(t, "fallback", SourceFallback.String())
	assert.Equal(t, "missing", SourceMissing.String())
}
