package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Mount types where SQLite locking and atomic rename are unreliable.
var networkFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

var errDetectUnsupported = errors.New("filesystem detection is unsupported on this platform")

// Mount describes the filesystem holding a path.
type Mount struct {
	// Probed is the nearest existing ancestor that was inspected.
	Probed string
	Type   string
	// Known is false when the platform cannot report a type.
	Known   bool
	Network bool
}

// ProbeMount inspects the filesystem that holds path, or would hold it once
// its missing parents are created.
func ProbeMount(path string) (Mount, error) {
	return probeMount(path, detectFilesystemType)
}

func probeMount(path string, detector func(string) (string, error)) (Mount, error) {
	if path == "" {
		return Mount{}, fmt.Errorf("path is empty")
	}
	probed, err := existingAncestor(path)
	if err != nil {
		return Mount{}, fmt.Errorf("resolve %q: %w", path, err)
	}

	m := Mount{Probed: probed}
	fsType, err := detector(probed)
	if errors.Is(err, errDetectUnsupported) {
		return m, nil
	}
	if err != nil {
		return Mount{}, fmt.Errorf("detect filesystem for %q: %w", probed, err)
	}

	m.Type = fsType
	m.Known = true
	_, m.Network = networkFilesystems[strings.ToLower(strings.TrimSpace(fsType))]
	return m, nil
}

// requireLocalDisk refuses database paths on network mounts.
func requireLocalDisk(path string, detector func(string) (string, error)) error {
	m, err := probeMount(path, detector)
	if err != nil {
		return err
	}
	if m.Network {
		return fmt.Errorf("database path %q is on network filesystem %q; the ledger needs local disk for SQLite locking. Point database.path (or DB_PATH) at local disk", path, m.Type)
	}
	return nil
}

func existingAncestor(path string) (string, error) {
	candidate, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(candidate)
		switch {
		case err == nil:
			return candidate, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent")
		}
		candidate = parent
	}
}
