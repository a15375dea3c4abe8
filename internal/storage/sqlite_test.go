package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
)

// Helper function to create a temporary test database
func setupTestDB(t *testing.T) (*DBClient, string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test_perfectpitch.sqlite3")

	// Set the environment variable to use our test database
	t.Setenv("PERFECTPITCH_DB_PATH", dbPath)

	client, err := NewDBClient()
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})

	return client, dbPath
}

func sampleExample(key string) *model.RawExample {
	return &model.RawExample{
		Key:         key,
		Audio:       model.Waveform{0, 0.25, -0.5, 1, -1},
		VelocityMin: 40,
		VelocityMax: 90,
		Notes: model.NoteSequence{
			Pitches:    []int{60, 64},
			Intervals:  [][2]float64{{0, 0.5}, {0.25, 1.125}},
			Velocities: []int{40, 90},
		},
	}
}

// TestNewDBClient tests database initialization
func TestNewDBClient(t *testing.T) {
	client, dbPath := setupTestDB(t)

	if client.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if client.db == nil {
		t.Fatal("Expected non-nil sql.DB handle")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

// TestNewDBClientWithCustomPath tests database creation in a missing directory
func TestNewDBClientWithCustomPath(t *testing.T) {
	customPath := filepath.Join(t.TempDir(), "subdir", "custom.db")

	client, err := NewDBClientWithPath(customPath)
	if err != nil {
		t.Fatalf("Failed to create DB with custom path: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(customPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at custom path %s", customPath)
	}
}

func TestOpenMissingStore(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.sqlite3"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
}

func TestSampleRateAttribute(t *testing.T) {
	client, _ := setupTestDB(t)

	if _, ok, err := client.SampleRate(); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v, want no sample rate", ok, err)
	}

	if err := client.SetSampleRate(16000); err != nil {
		t.Fatalf("SetSampleRate: %v", err)
	}
	if err := client.SetSampleRate(22050); err != nil {
		t.Fatalf("SetSampleRate overwrite: %v", err)
	}

	rate, ok, err := client.SampleRate()
	if err != nil || !ok {
		t.Fatalf("SampleRate: ok=%v err=%v", ok, err)
	}
	if rate != 22050 {
		t.Errorf("Expected 22050, got %d", rate)
	}
}

func TestPutAndReadExample(t *testing.T) {
	client, _ := setupTestDB(t)
	want := sampleExample("piece/a")

	if err := client.PutExample(want); err != nil {
		t.Fatalf("PutExample: %v", err)
	}

	got, err := client.ReadExample("piece/a")
	if err != nil {
		t.Fatalf("ReadExample: %v", err)
	}
	if got.Key != want.Key || got.VelocityMin != 40 || got.VelocityMax != 90 {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if len(got.Audio) != len(want.Audio) {
		t.Fatalf("Expected %d samples, got %d", len(want.Audio), len(got.Audio))
	}
	for i := range want.Audio {
		if got.Audio[i] != want.Audio[i] {
			t.Errorf("sample %d: got %v, want %v", i, got.Audio[i], want.Audio[i])
		}
	}
	if len(got.Notes.Intervals) != 2 || got.Notes.Intervals[1] != [2]float64{0.25, 1.125} {
		t.Errorf("intervals mismatch: %v", got.Notes.Intervals)
	}
	if got.Notes.Pitches[1] != 64 || got.Notes.Velocities[0] != 40 {
		t.Errorf("notes mismatch: %+v", got.Notes)
	}
}

// TestPutExampleUpsert tests that storing the same key twice replaces the example
func TestPutExampleUpsert(t *testing.T) {
	client, _ := setupTestDB(t)

	if err := client.PutExample(sampleExample("dup")); err != nil {
		t.Fatalf("PutExample first: %v", err)
	}
	first, err := client.ExampleInfo("dup")
	if err != nil {
		t.Fatalf("ExampleInfo: %v", err)
	}

	replacement := sampleExample("dup")
	replacement.Audio = model.Waveform{0.5}
	replacement.VelocityMax = 127
	if err := client.PutExample(replacement); err != nil {
		t.Fatalf("PutExample second: %v", err)
	}

	count, err := client.CountExamples()
	if err != nil {
		t.Fatalf("CountExamples: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 example, found %d", count)
	}

	info, err := client.ExampleInfo("dup")
	if err != nil {
		t.Fatalf("ExampleInfo: %v", err)
	}
	if info.ID != first.ID {
		t.Errorf("Expected row id to be kept, got %s and %s", first.ID, info.ID)
	}
	if info.NumSamples != 1 || info.VelocityMax != 127 {
		t.Errorf("Expected replaced row, got %+v", info)
	}
}

func TestListKeysLexicographic(t *testing.T) {
	client, _ := setupTestDB(t)

	for _, key := range []string{"b/2", "a/10", "B", "a/9"} {
		if err := client.PutExample(sampleExample(key)); err != nil {
			t.Fatalf("PutExample %s: %v", key, err)
		}
	}

	keys, err := client.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	want := []string{"B", "a/10", "a/9", "b/2"}
	if len(keys) != len(want) {
		t.Fatalf("Expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: got %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestReadExampleNotFound(t *testing.T) {
	client, _ := setupTestDB(t)

	_, err := client.ReadExample("missing")
	if !errors.Is(err, perfectpitch.ErrExampleNotFound) {
		t.Errorf("Expected ErrExampleNotFound, got %v", err)
	}
}

// TestDeleteExample tests example deletion
func TestDeleteExample(t *testing.T) {
	client, _ := setupTestDB(t)

	if err := client.PutExample(sampleExample("to-delete")); err != nil {
		t.Fatalf("PutExample: %v", err)
	}
	if err := client.DeleteExample("to-delete"); err != nil {
		t.Fatalf("DeleteExample: %v", err)
	}
	if _, err := client.ReadExample("to-delete"); !errors.Is(err, perfectpitch.ErrExampleNotFound) {
		t.Errorf("Expected example to be deleted, got %v", err)
	}
	if err := client.DeleteExample("to-delete"); !errors.Is(err, perfectpitch.ErrExampleNotFound) {
		t.Errorf("Expected ErrExampleNotFound on second delete, got %v", err)
	}
}

func TestEmptyNoteSequence(t *testing.T) {
	client, _ := setupTestDB(t)

	ex := &model.RawExample{Key: "silence", Audio: make(model.Waveform, 100)}
	if err := client.PutExample(ex); err != nil {
		t.Fatalf("PutExample: %v", err)
	}
	got, err := client.ReadExample("silence")
	if err != nil {
		t.Fatalf("ReadExample: %v", err)
	}
	if len(got.Notes.Pitches) != 0 || len(got.Audio) != 100 {
		t.Errorf("unexpected example: %d notes, %d samples", len(got.Notes.Pitches), len(got.Audio))
	}
}

// TestClose tests closing the database connection
func TestClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "close_test.sqlite3")

	client, err := NewDBClientWithPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to create DB client: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}

	var nilClient *DBClient
	if err := nilClient.Close(); err != nil {
		t.Errorf("Close on nil client should be a no-op, got %v", err)
	}
}

func TestReopenExistingStore(t *testing.T) {
	client, dbPath := setupTestDB(t)
	if err := client.SetSampleRate(16000); err != nil {
		t.Fatalf("SetSampleRate: %v", err)
	}
	if err := client.PutExample(sampleExample("kept")); err != nil {
		t.Fatalf("PutExample: %v", err)
	}

	reader, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	rate, ok, err := reader.SampleRate()
	if err != nil || !ok || rate != 16000 {
		t.Errorf("SampleRate = %d, %v, %v", rate, ok, err)
	}
	if _, err := reader.ReadExample("kept"); err != nil {
		t.Errorf("ReadExample: %v", err)
	}
}
