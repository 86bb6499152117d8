package atomicfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	tmpSuffix    = ".tmp"
	backupSuffix = ".backup"
	filePerm     = 0644
)

// Source reports where Load got its value from
type Source int

const (
	// SourceMissing means no file existed yet and the fallback was returned
	SourceMissing Source = iota
	// SourcePrimary means the file itself was read
	SourcePrimary
	// SourceBackup means the file was unreadable and the backup was restored
	SourceBackup
	// SourceFallback means both the file and its backup were unusable
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceMissing:
		return "missing"
	case SourcePrimary:
		return "primary"
	case SourceBackup:
		return "backup"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// File is a single JSON document on disk. Saves go through a temp file and a
// rename so a crash mid-write never leaves a truncated document behind, and
// the previous version is kept next to it as <path>.backup.
type File struct {
	path   string
	logger *zap.Logger
}

// New returns a File for path
func New(path string, logger *zap.Logger) *File {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &File{path: path, logger: logger}
}

// Path returns the location of the live document
func (f *File) Path() string { return f.path }

// BackupPath returns the location of the previous version
func (f *File) BackupPath() string { return f.path + backupSuffix }

func (f *File) tmpPath() string { return f.path + tmpSuffix }

// Save writes v as indented JSON: temp file first, then the current file is
// copied to the backup, then the temp file is renamed into place.
func (f *File) Save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(f.path), err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp := f.tmpPath()
	if err := writeSynced(tmp, data); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if _, err := os.Stat(f.path); err == nil {
		if err := copyFile(f.path, f.BackupPath()); err != nil {
			f.logger.Warn("Could not create backup",
				zap.String("file", f.path),
				zap.Error(err))
		}
	}

	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(f.path), err)
	}

	return nil
}

// Load reads the document into a value of type T. It never fails: a missing
// file yields fallback, an unreadable one is restored from the backup, and
// if the backup is unusable too the fallback is returned and the condition
// logged.
func Load[T any](f *File, fallback T) (T, Source) {
	value, err := decodeFile[T](f.path)
	if err == nil {
		return value, SourcePrimary
	}
	if errors.Is(err, os.ErrNotExist) {
		return fallback, SourceMissing
	}

	f.logger.Error("Error loading data file", zap.String("file", f.path), zap.Error(err))

	backup, backupErr := decodeFile[T](f.BackupPath())
	if backupErr == nil {
		f.logger.Warn("Restored data file from backup", zap.String("backup", f.BackupPath()))
		if err := f.Save(backup); err != nil {
			f.logger.Error("Failed to rewrite data file from backup", zap.String("file", f.path), zap.Error(err))
		}
		return backup, SourceBackup
	}
	if !errors.Is(backupErr, os.ErrNotExist) {
		f.logger.Error("Backup restoration failed", zap.String("backup", f.BackupPath()), zap.Error(backupErr))
	}

	f.logger.Warn("Using fallback data", zap.String("file", f.path))
	return fallback, SourceFallback
}

func decodeFile[T any](path string) (T, error) {
	var value T
	data, err := os.ReadFile(path)
	if err != nil {
		return value, err
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return value, nil
}

func writeSynced(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, filePerm)
}
