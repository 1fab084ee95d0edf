package usecase

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgerror"
)

const (
	stagedPrefix = "upload-"
	stagedSuffix = ".csv"
)

// Stage copies an uploaded file into the temp directory.
func (u *Usecase) Stage(ctx context.Context, name string, r io.Reader) (entity.StagedFile, error) {
	dir := u.tempDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return entity.StagedFile{}, pkgerror.NewServer(&FileSystemError{Op: "mkdir", Path: dir, Err: err})
	}

	path := filepath.Join(dir, stagedPrefix+u.rowID.Generate()+stagedSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return entity.StagedFile{}, pkgerror.NewServer(&FileSystemError{Op: "create", Path: path, Err: err})
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if rerr := removeFile(path); rerr != nil {
			slog.WarnContext(ctx, "failed to remove partial upload", "error", rerr)
		}
		return entity.StagedFile{}, pkgerror.NewServer(&FileSystemError{Op: "write", Path: path, Err: err})
	}

	base := filepath.Base(name)
	if name == "" || base == "." || base == string(filepath.Separator) {
		base = "upload.csv"
	}

	return entity.StagedFile{Path: path, Name: base, Size: n}, nil
}

// Discard removes a staged file. A file that is already gone is not an error.
func (u *Usecase) Discard(ctx context.Context, staged entity.StagedFile) {
	if staged.Path == "" {
		return
	}
	if err := removeFile(staged.Path); err != nil {
		slog.WarnContext(ctx, "failed to remove staged upload", "error", err)
	}
}

// SweepOrphans removes staged files older than the orphan age that no
// processing job owns, and returns how many were removed.
func (u *Usecase) SweepOrphans(ctx context.Context) (int, error) {
	dir := u.tempDir()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, &FileSystemError{Op: "readdir", Path: dir, Err: err}
	}

	owned := u.jobs.ActiveFiles(ctx)
	cutoff := u.clock.Now().Add(-u.cfg.OrphanMaxAge)

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !isStagedName(e.Name()) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		if _, ok := owned[path]; ok {
			continue
		}

		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		if err := removeFile(path); err != nil {
			slog.WarnContext(ctx, "failed to remove orphaned upload", "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.InfoContext(ctx, "removed orphaned uploads", "count", removed)
	}
	return removed, nil
}

func (u *Usecase) tempDir() string {
	if u.cfg.TempDir != "" {
		return u.cfg.TempDir
	}
	return filepath.Join(os.TempDir(), "goingest")
}

func isStagedName(name string) bool {
	return strings.HasPrefix(name, stagedPrefix) && strings.HasSuffix(name, stagedSuffix)
}

func removeFile(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return &FileSystemError{Op: "remove", Path: path, Err: err}
}
