package dlq

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/fanout-dispatcher/internal/models"
)

func TestRecordFailureAppendsDurablyAndToRoster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "failed-records.jsonl")

	d := New(path, true, 3, zerolog.Nop())
	d.Start()

	d.RecordFailure(map[string]any{"id": 1}, models.RoleREST, 3, "max retries exceeded")

	d.Stop()

	if got := d.FailedCount(); got != 1 {
		t.Fatalf("expected roster size 1, got %d", got)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open dlq file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line in dlq file, got %d", len(lines))
	}

	var rec models.FailureRecord
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal dlq line: %v", err)
	}
	if rec.Sink != models.RoleREST {
		t.Fatalf("expected sink REST, got %s", rec.Sink)
	}
	if rec.Attempts != 3 {
		t.Fatalf("expected attempts 3, got %d", rec.Attempts)
	}
	if rec.Timestamp.IsZero() {
		t.Fatal("expected non-zero timestamp")
	}
}

func TestClearEmptiesRosterNotFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "failed-records.jsonl")

	d := New(path, true, 3, zerolog.Nop())
	d.Start()
	d.RecordFailure("raw record", models.RoleMQ, 0, "Transformation failed: boom")
	d.Stop()

	if d.FailedCount() != 1 {
		t.Fatalf("expected roster size 1 before clear")
	}
	d.Clear()
	if d.FailedCount() != 0 {
		t.Fatalf("expected roster size 0 after clear")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dlq file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected durable file to still contain the appended line after clear")
	}
}

func TestDisabledDLQIsNoOp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "failed-records.jsonl")

	d := New(path, false, 3, zerolog.Nop())
	d.Start()
	d.RecordFailure("raw record", models.RoleDB, 3, "max retries exceeded")
	d.Stop()

	if d.FailedCount() != 0 {
		t.Fatalf("expected 0 failures recorded when disabled, got %d", d.FailedCount())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected no file to be created when disabled")
	}
}

func TestInitializationFailureDisablesWritesWithoutCrashing(t *testing.T) {
	// A path whose parent cannot be created (a file masquerading as a directory).
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	path := filepath.Join(blocker, "nested", "failed-records.jsonl")

	d := New(path, true, 3, zerolog.Nop())
	if !d.Enabled() {
		t.Fatal("expected the configured master switch to remain enabled after an init failure")
	}
	if d.DurableWrites() {
		t.Fatal("expected durable writes to be disabled when parent directories can't be created")
	}
	d.Start()
	d.RecordFailure("raw", models.RoleGRPC, 1, "boom")
	d.Stop()

	if d.FailedCount() != 1 {
		t.Fatal("expected in-memory roster to still record the failure")
	}
}

func TestRawMessageRecordIsSplicedVerbatim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "failed-records.jsonl")

	d := New(path, true, 3, zerolog.Nop())
	d.Start()
	d.RecordFailure(json.RawMessage(`{"id":1,"nested":{"ok":true}}`), models.RoleGRPC, 3, "max retries exceeded")
	d.Stop()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dlq file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"record":{"id":1,"nested":{"ok":true}}`) {
		t.Fatalf("expected record to be spliced in verbatim, got %q", line)
	}

	var rec models.FailureRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("expected a well-formed line for a valid record, got unmarshal error: %v", err)
	}
}

func TestMalformedRawMessageRecordStillProducesALine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "failed-records.jsonl")

	d := New(path, true, 0, zerolog.Nop())
	d.Start()
	d.RecordFailure(json.RawMessage(`{oops`), models.RoleMQ, 0, "Transformation failed: boom")
	d.Stop()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dlq file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected a spliced (possibly malformed) line for a malformed record, got no line at all")
	}
	if !strings.Contains(string(data), `"record":{oops`) {
		t.Fatalf("expected the malformed record bytes to be spliced verbatim, got %q", data)
	}
}

func TestWriteLoopFlushesBeforeStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "failed-records.jsonl")
	d := New(path, true, 3, zerolog.Nop())
	d.Start()
	for i := 0; i < 10; i++ {
		d.RecordFailure("raw", models.RoleREST, 3, "x")
	}
	d.Stop()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	count := 0
	for _, b := range data {
		if b == '\n' {
			count++
		}
	}
	if count != 10 {
		t.Fatalf("expected 10 appended lines, got %d", count)
	}
}
