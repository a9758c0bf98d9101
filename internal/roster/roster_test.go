package roster

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &row))
	}
	path := filepath.Join(t.TempDir(), "hosts.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadWorkbookWithLegacyHeaders(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Hostname", "Nume ", "Norma"},
		{"h1", " Ana ", 8},
		{"h2", "Bob", 6},
		{"", "Skipped", 8},
		{"h3", "Cleo", "n/a"},
	})
	logger, buf := testLogger()

	r, err := Load(path, "", logger)
	require.NoError(t, err)

	assert.Equal(t, 3, r.Len())
	ana, ok := r.Lookup("h1")
	require.True(t, ok)
	assert.Equal(t, Entry{HostID: "h1", DisplayName: "Ana", ExpectedHours: 8}, ana)

	bob, _ := r.Lookup("h2")
	assert.Equal(t, 6.0, bob.ExpectedHours)

	cleo, _ := r.Lookup("h3")
	assert.Equal(t, DefaultExpectedHours, cleo.ExpectedHours)
	assert.Contains(t, buf.String(), "invalid expected hours")

	assert.Equal(t, []string{"h1", "h2", "h3"}, r.IDs())
	assert.Len(t, r.Fingerprint(), 64)
	assert.Equal(t, path, r.Source())
}

func TestLoadCSVDuplicateLastWins(t *testing.T) {
	path := writeCSV(t, "host,name,hours\nh1,Ana,8\nh2,Bob,7.5\nh1,Ana Maria,4\n")
	logger, buf := testLogger()

	r, err := Load(path, "", logger)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	e, _ := r.Lookup("h1")
	assert.Equal(t, "Ana Maria", e.DisplayName)
	assert.Equal(t, 4.0, e.ExpectedHours)
	assert.Contains(t, buf.String(), "duplicate host")
}

func TestLoadMissingNameFallsBackToHostID(t *testing.T) {
	path := writeCSV(t, "Hostname\npc-7\n")
	r, err := Load(path, "", nil)
	require.NoError(t, err)

	e, ok := r.Lookup("pc-7")
	require.True(t, ok)
	assert.Equal(t, "pc-7", e.DisplayName)
	assert.Equal(t, DefaultExpectedHours, e.ExpectedHours)
}

func TestLoadErrors(t *testing.T) {
	t.Run("empty roster", func(t *testing.T) {
		path := writeCSV(t, "Hostname,Nume,Norma\n")
		_, err := Load(path, "", nil)
		assert.True(t, errors.Is(err, ErrEmptyRoster), "got %v", err)
	})

	t.Run("missing host column", func(t *testing.T) {
		path := writeCSV(t, "Name,Hours\nAna,8\n")
		_, err := Load(path, "", nil)
		assert.ErrorContains(t, err, "missing host column")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hosts.json")
		require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
		_, err := Load(path, "", nil)
		assert.ErrorContains(t, err, "unsupported file type")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.xlsx"), "", nil)
		assert.Error(t, err)
	})

	t.Run("unknown sheet", func(t *testing.T) {
		path := writeWorkbook(t, [][]any{{"Hostname"}, {"h1"}})
		_, err := Load(path, "Missing", nil)
		assert.Error(t, err)
	})
}

func TestDisplayNameFallback(t *testing.T) {
	r := New([]Entry{{HostID: "h1", DisplayName: "Ana", ExpectedHours: 8}})
	assert.Equal(t, "Ana", r.DisplayName("h1"))
	assert.Equal(t, UnknownName, r.DisplayName("ghost"))

	var empty *Roster
	assert.Equal(t, UnknownName, empty.DisplayName("h1"))
	assert.Equal(t, 0, empty.Len())
}

func TestStoreReloadAndAuthorize(t *testing.T) {
	path := writeCSV(t, "Hostname,Nume,Norma\nh1,Ana,8\n")
	logger, _ := testLogger()
	s := NewStore(path, "", logger)

	assert.Nil(t, s.Current())
	_, err := s.Authorize("h1")
	assert.ErrorIs(t, err, ErrUnknownHost)

	first, err := s.Reload(context.Background())
	require.NoError(t, err)
	e, err := s.Authorize("h1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", e.DisplayName)

	require.NoError(t, os.WriteFile(path, []byte("Hostname,Nume,Norma\nh1,Ana,8\nh2,Bob,8\n"), 0o644))
	second, err := s.Reload(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint(), second.Fingerprint())
	_, err = s.Authorize("h2")
	assert.NoError(t, err)

	// A broken source keeps the previous snapshot.
	require.NoError(t, os.WriteFile(path, []byte("Hostname,Nume,Norma\n"), 0o644))
	_, err = s.Reload(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, s.Current().Len())
}

func TestStaticStoreCannotReload(t *testing.T) {
	s := NewStaticStore(New([]Entry{{HostID: "h1"}}))
	_, err := s.Reload(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, s.Current().Len())
}
