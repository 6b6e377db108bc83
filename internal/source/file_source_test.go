package source

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/fanout-dispatcher/internal/queue"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func drain(t *testing.T, q *queue.BoundedRecordQueue, n int) []string {
	t.Helper()
	var out []string
	for i := 0; i < n; i++ {
		rec, ok := q.Poll(time.Second)
		if !ok {
			t.Fatalf("expected record %d, queue was empty", i)
		}
		out = append(out, rec)
	}
	return out
}

func TestFileSourceJSONLines(t *testing.T) {
	path := writeTemp(t, "input.jsonl", "{\"id\":1}\n{\"id\":2},\n\n[\n{\"id\":3}\n]\n")
	q := queue.New(10)
	s := NewFileSource(path, FormatJSONL, zerolog.Nop())

	if err := s.Run(context.Background(), q); err != nil {
		t.Fatalf("run: %v", err)
	}
	<-s.Done()

	recs := drain(t, q, 3)
	for _, r := range recs {
		var v map[string]any
		if err := json.Unmarshal([]byte(r), &v); err != nil {
			t.Fatalf("record %q is not valid JSON: %v", r, err)
		}
	}
}

func TestFileSourceJSONArray(t *testing.T) {
	path := writeTemp(t, "input.json", `[{"id":1},{"id":2},{"id":3}]`)
	q := queue.New(10)
	s := NewFileSource(path, FormatJSON, zerolog.Nop())

	if err := s.Run(context.Background(), q); err != nil {
		t.Fatalf("run: %v", err)
	}

	drain(t, q, 3)
}

func TestFileSourceCSV(t *testing.T) {
	path := writeTemp(t, "input.csv", "id,name\n1,alice\n2,bob\n")
	q := queue.New(10)
	s := NewFileSource(path, FormatCSV, zerolog.Nop())

	if err := s.Run(context.Background(), q); err != nil {
		t.Fatalf("run: %v", err)
	}

	recs := drain(t, q, 2)
	var first map[string]string
	if err := json.Unmarshal([]byte(recs[0]), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first["id"] != "1" || first["name"] != "alice" {
		t.Fatalf("unexpected row encoding: %v", first)
	}
}

func TestFileSourceFixedWidthPipeDelimited(t *testing.T) {
	path := writeTemp(t, "input.txt", "id|name\n1|alice\n2|bob\n")
	q := queue.New(10)
	s := NewFileSource(path, FormatFixedWidth, zerolog.Nop())

	if err := s.Run(context.Background(), q); err != nil {
		t.Fatalf("run: %v", err)
	}

	recs := drain(t, q, 2)
	var first map[string]string
	if err := json.Unmarshal([]byte(recs[0]), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first["id"] != "1" || first["name"] != "alice" {
		t.Fatalf("unexpected row encoding: %v", first)
	}
}

func TestFileSourceUnreadableFileTerminatesWithError(t *testing.T) {
	q := queue.New(10)
	s := NewFileSource(filepath.Join(t.TempDir(), "missing.jsonl"), FormatJSONL, zerolog.Nop())

	err := s.Run(context.Background(), q)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("expected Done() to be closed after Run returns, even on error")
	}
}

func TestFileSourceDefaultsUnknownFormatToJSONL(t *testing.T) {
	path := writeTemp(t, "input.weird", "{\"id\":1}\n")
	q := queue.New(10)
	s := NewFileSource(path, "something-unrecognized", zerolog.Nop())

	if err := s.Run(context.Background(), q); err != nil {
		t.Fatalf("run: %v", err)
	}
	drain(t, q, 1)
}
