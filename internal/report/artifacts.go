package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Artifacts manages rendered reports stored as <dir>/<date>.pdf.
type Artifacts struct {
	dir string
}

// NewArtifacts returns a store rooted at dir, creating it if needed.
func NewArtifacts(dir string) (*Artifacts, error) {
	if dir == "" {
		return nil, fmt.Errorf("report output directory is empty")
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve report dir: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &Artifacts{dir: absDir}, nil
}

// Dir returns the absolute output directory.
func (a *Artifacts) Dir() string { return a.dir }

// Path returns where the artifact for date lives.
func (a *Artifacts) Path(date string) string {
	return filepath.Join(a.dir, date+".pdf")
}

// DownloadName is the filename offered to HTTP clients and email recipients.
func DownloadName(date string) string {
	return "report_" + date + ".pdf"
}

// Exists reports whether an artifact for date is present.
func (a *Artifacts) Exists(date string) bool {
	info, err := os.Stat(a.Path(date))
	return err == nil && info.Mode().IsRegular()
}

// Read returns the artifact bytes. Missing artifacts wrap os.ErrNotExist.
func (a *Artifacts) Read(date string) ([]byte, error) {
	data, err := os.ReadFile(a.Path(date))
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", date, err)
	}
	return data, nil
}

// Publish writes data to a temp file beside the target and renames it into
// place, so readers never observe a partial artifact.
func (a *Artifacts) Publish(date string, data []byte) (string, error) {
	target := a.Path(date)
	tmp, err := os.CreateTemp(a.dir, "."+date+"-*.pdf.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("write temp report: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("sync temp report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return "", fmt.Errorf("chmod temp report: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return "", fmt.Errorf("publish report: %w", err)
	}
	return target, nil
}

// Remove deletes the artifact for date. A missing artifact is not an error;
// the boolean reports whether a file was removed.
func (a *Artifacts) Remove(date string) (bool, error) {
	err := os.Remove(a.Path(date))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove report %s: %w", date, err)
	}
	return true, nil
}
