// Package fsutil holds the file writes shared by the fiche and index builders.
package fsutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const filePerm = 0o644

// WriteFileAtomic replaces path with data so readers see either the old or
// the new content. Parent directories are created. If the final rename fails
// the file is overwritten in place instead.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return os.WriteFile(path, data, filePerm)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		if werr := os.WriteFile(path, data, filePerm); werr != nil {
			return fmt.Errorf("replace %s: %w", path, errors.Join(err, werr))
		}
	}
	return nil
}

// Writer writes documents, optionally retrying through an external command
// when the process lacks permission on the target.
type Writer struct {
	// FallbackCmd is run with the target path appended and the data on stdin,
	// e.g. ["sudo", "tee"]. Empty disables the fallback.
	FallbackCmd []string
}

// WriteFile writes data to path, creating parent directories. The fallback
// command is only tried when the direct write fails with a permission error.
func (w Writer) WriteFile(ctx context.Context, path string, data []byte) error {
	err := writeDirect(path, data)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrPermission) || len(w.FallbackCmd) == 0 {
		return err
	}

	if ferr := w.runFallback(ctx, path, data); ferr != nil {
		return fmt.Errorf("write %s: %w", path, errors.Join(err, ferr))
	}
	return nil
}

func writeDirect(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, filePerm)
}

func (w Writer) runFallback(ctx context.Context, path string, data []byte) error {
	// Parent directories may be just as unwritable; create them the same way.
	if mkdir := w.mkdirCmd(filepath.Dir(path)); mkdir != nil {
		if _, statErr := os.Stat(filepath.Dir(path)); statErr != nil {
			cmd := exec.CommandContext(ctx, mkdir[0], mkdir[1:]...)
			if out, err := cmd.CombinedOutput(); err != nil {
				return fmt.Errorf("%s: %w: %s", strings.Join(mkdir, " "), err, bytes.TrimSpace(out))
			}
		}
	}

	args := append(append([]string{}, w.FallbackCmd[1:]...), path)
	cmd := exec.CommandContext(ctx, w.FallbackCmd[0], args...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", strings.Join(w.FallbackCmd, " "), err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// mkdirCmd keeps any privilege-raising prefix of FallbackCmd (everything
// before the last element) and swaps the writer for mkdir -p.
func (w Writer) mkdirCmd(dir string) []string {
	if len(w.FallbackCmd) < 2 {
		return nil
	}
	prefix := w.FallbackCmd[:len(w.FallbackCmd)-1]
	return append(append([]string{}, prefix...), "mkdir", "-p", dir)
}
