package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/PerfectPitch/internal/audio"
	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/himanishpuri/PerfectPitch/internal/score"
	"github.com/himanishpuri/PerfectPitch/internal/storage"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func writePair(t *testing.T, dir, name string) {
	t.Helper()
	if err := audio.WriteWav(filepath.Join(dir, name+".wav"), make(model.Waveform, 2000), 1000); err != nil {
		t.Fatalf("WriteWav: %v", err)
	}
	midi := score.Encode([]model.NoteEvent{{Pitch: 60, StartTime: 0.25, EndTime: 1, Velocity: 90}}, nil)
	if err := os.WriteFile(filepath.Join(dir, name+".mid"), midi, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestIngestInspectDelete(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	dir := t.TempDir()
	writePair(t, dir, "take1")
	writePair(t, dir, "take2")
	db := filepath.Join(t.TempDir(), "cli.sqlite3")
	common := []string{"--db", db, "--rate", "1000", "--hop", "250", "--log-level", "ERROR"}

	if err := run(t, append([]string{"ingest", dir}, common...)...); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := run(t, append([]string{"keys"}, common...)...); err != nil {
		t.Fatalf("keys: %v", err)
	}
	if err := run(t, append([]string{"inspect", "1", "--views", "spec_length,pianoroll"}, common...)...); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if err := run(t, append([]string{"inspect", "2"}, common...)...); err == nil {
		t.Error("inspect past the end succeeded")
	}
	if err := run(t, append([]string{"inspect", "0", "--views", "waveform"}, common...)...); err == nil {
		t.Error("inspect with an unknown view succeeded")
	}
	if err := run(t, append([]string{"delete", "take1"}, common...)...); err != nil {
		t.Fatalf("delete: %v", err)
	}

	client, err := storage.Open(db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer client.Close()
	keys, err := client.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "take2" {
		t.Errorf("keys after delete = %v, want [take2]", keys)
	}
}

func TestInspectRejectsOtherRate(t *testing.T) {
	dir := t.TempDir()
	writePair(t, dir, "take")
	db := filepath.Join(t.TempDir(), "cli.sqlite3")

	if err := run(t, "ingest", dir, "--db", db, "--rate", "1000", "--hop", "250", "--log-level", "ERROR"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := run(t, "inspect", "0", "--db", db, "--rate", "2000", "--log-level", "ERROR"); err == nil {
		t.Error("inspect with a different sample rate succeeded")
	}
}

func TestParseWritesMIDI(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mid")
	out := filepath.Join(dir, "out.mid")
	notes := []model.NoteEvent{{Pitch: 60, StartTime: 0, EndTime: 0.5, Velocity: 64}}
	pedals := []score.PedalEvent{{Time: 0.25, Down: true}, {Time: 1, Down: false}}
	if err := os.WriteFile(in, score.Encode(notes, pedals), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := run(t, "parse", in, "--write", out, "--log-level", "ERROR"); err != nil {
		t.Fatalf("parse: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	s, err := score.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(s.Pedals) != 0 || len(s.Notes) != 1 {
		t.Fatalf("decoded %d notes, %d pedals; want 1, 0", len(s.Notes), len(s.Pedals))
	}
	if s.Notes[0].EndTime != 1 {
		t.Errorf("sustained end = %v, want 1", s.Notes[0].EndTime)
	}
}
