package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/crimson-sun/combatlog/internal/model"
)

func testRecord() model.CanonicalRecord {
	return model.CanonicalRecord{
		Timestamp:        "10/19/2026 20:00:12.000",
		EventType:        "UNIT_DIED",
		SpellDestination: "Alice-US",
		Position:         model.Position{X: "100.0", Y: "200.0", Facing: "1.5"},
		EncounterID:      1,
		Elapsed:          12 * time.Second,
		UnitDiedSequence: 1,
	}
}

// captureStdout redirects os.Stdout to capture output.
func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestWriteNDJSON(t *testing.T) {
	got := captureStdout(func() {
		o := New(false)
		o.Write(context.Background(), testRecord())
		o.Write(context.Background(), testRecord())
	})

	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m["event_type"] != "UNIT_DIED" {
		t.Errorf("event_type = %v", m["event_type"])
	}
	if m["relative_fight_time"] != "12.000" {
		t.Errorf("relative_fight_time = %v", m["relative_fight_time"])
	}
	if m["unit_died_sequence"] != float64(1) {
		t.Errorf("unit_died_sequence = %v", m["unit_died_sequence"])
	}
}

func TestWritePretty(t *testing.T) {
	var buf bytes.Buffer
	o := NewWriter(&buf, true)
	if err := o.Write(context.Background(), testRecord()); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"timestamp\"") {
		t.Errorf("expected indented output, got %s", buf.String())
	}
	if err := o.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}
}
