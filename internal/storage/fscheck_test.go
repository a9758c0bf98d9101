package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func fixedType(fsType string) func(string) (string, error) {
	return func(string) (string, error) { return fsType, nil }
}

func TestRequireLocalDisk(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "checkins.db")
	if err := requireLocalDisk(dbPath, fixedType("ext4")); err != nil {
		t.Fatalf("ext4 should pass, got: %v", err)
	}

	err := requireLocalDisk(dbPath, fixedType("NFS"))
	if err == nil {
		t.Fatal("expected network filesystem error")
	}
	for _, want := range []string{`"NFS"`, "local disk", "database.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestProbeMountUsesNearestExistingAncestor(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var inspected string
	m, err := probeMount(filepath.Join(root, "reports", "2024", "x.pdf"), func(path string) (string, error) {
		inspected = path
		return "smb2", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if inspected != root || m.Probed != root {
		t.Fatalf("inspected %q (probed %q), want %q", inspected, m.Probed, root)
	}
	if !m.Known || !m.Network || m.Type != "smb2" {
		t.Fatalf("mount = %+v", m)
	}
}

func TestProbeMountUnsupportedPlatform(t *testing.T) {
	t.Parallel()

	m, err := probeMount(t.TempDir(), func(string) (string, error) { return "", errDetectUnsupported })
	if err != nil {
		t.Fatalf("unsupported detection should be tolerated, got: %v", err)
	}
	if m.Known || m.Network {
		t.Fatalf("mount = %+v", m)
	}
	if err := requireLocalDisk(t.TempDir(), func(string) (string, error) { return "", errDetectUnsupported }); err != nil {
		t.Fatalf("requireLocalDisk = %v", err)
	}
}

func TestProbeMountErrors(t *testing.T) {
	t.Parallel()

	if _, err := probeMount("", fixedType("ext4")); err == nil {
		t.Fatal("expected error for empty path")
	}
	_, err := probeMount(t.TempDir(), func(string) (string, error) { return "", errors.New("statfs exploded") })
	if err == nil || !strings.Contains(err.Error(), "statfs exploded") {
		t.Fatalf("expected detector error, got: %v", err)
	}
}

func TestProbeMountClassifiesTypes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		fs   string
		want bool
	}{
		{"nfs", true},
		{" CIFS ", true},
		{"webdav", true},
		{"apfs", false},
		{"0x6969", false},
	}
	dir := t.TempDir()
	for _, tc := range cases {
		m, err := probeMount(dir, fixedType(tc.fs))
		if err != nil {
			t.Fatal(err)
		}
		if m.Network != tc.want {
			t.Fatalf("%q network=%v, want %v", tc.fs, m.Network, tc.want)
		}
	}
}

func TestProbeMountRealPath(t *testing.T) {
	t.Parallel()

	m, err := ProbeMount(filepath.Join(t.TempDir(), "checkins.db"))
	if err != nil {
		t.Fatalf("ProbeMount: %v", err)
	}
	if m.Network {
		t.Fatalf("temp dir reported as network mount: %+v", m)
	}
}
