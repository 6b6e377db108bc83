package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/example/fanout-dispatcher/internal/queue"
)

// Supported input formats, selected by configuration.
const (
	FormatJSON       = "json"
	FormatJSONL      = "jsonl"
	FormatCSV        = "csv"
	FormatFixedWidth = "fixedwidth"
)

// FileSource reads records from a file artifact, dispatching to a
// format-specific reader, grounded in the original file producer's
// per-format parsing behaviour.
type FileSource struct {
	logger   zerolog.Logger
	filePath string
	format   string

	done     chan struct{}
	doneOnce sync.Once
}

// NewFileSource constructs a FileSource for filePath using format (one of
// FormatJSON, FormatJSONL, FormatCSV, FormatFixedWidth). An unrecognized
// format defaults to JSONL, matching the original producer's fallback.
func NewFileSource(filePath, format string, logger zerolog.Logger) *FileSource {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		f = FormatJSONL
	}
	return &FileSource{
		logger:   logger,
		filePath: filePath,
		format:   f,
		done:     make(chan struct{}),
	}
}

// Done implements Source.
func (s *FileSource) Done() <-chan struct{} {
	return s.done
}

func (s *FileSource) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Run implements Source. Unreadable input is logged and the source
// terminates; the orchestrator observes eventual queue idleness and shuts
// down cleanly, per spec.md §7's source-error handling.
func (s *FileSource) Run(ctx context.Context, q *queue.BoundedRecordQueue) error {
	defer s.markDone()

	f, err := os.Open(s.filePath)
	if err != nil {
		s.logger.Error().Err(err).Str("path", s.filePath).Msg("record source: failed to open input file")
		return fmt.Errorf("record source: open %s: %w", s.filePath, err)
	}
	defer f.Close()

	switch s.format {
	case FormatJSON:
		return s.readJSONArray(ctx, f, q)
	case FormatCSV:
		return s.readDelimited(ctx, f, q, ',')
	case FormatFixedWidth:
		return s.readFixedWidth(ctx, f, q)
	default:
		return s.readJSONLines(ctx, f, q)
	}
}

func (s *FileSource) readJSONLines(ctx context.Context, f *os.File, q *queue.BoundedRecordQueue) error {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "[" || line == "]" {
			continue
		}
		line = strings.TrimSuffix(line, ",")
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if err := q.Put(ctx, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// readJSONArray streams a top-level JSON array of objects, re-encoding each
// element as a record line without materializing the whole array.
func (s *FileSource) readJSONArray(ctx context.Context, f *os.File, q *queue.BoundedRecordQueue) error {
	dec := json.NewDecoder(f)

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("record source: reading array start: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("record source: expected top-level JSON array, got %v", tok)
	}

	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record source: decoding array element: %w", err)
		}
		if err := q.Put(ctx, string(raw)); err != nil {
			return err
		}
	}
	return nil
}

// readDelimited parses a header row plus data rows into flat JSON objects
// using encoding/csv, so quoted fields are honoured; rows may have a
// different field count than the header, and extra values are dropped.
func (s *FileSource) readDelimited(ctx context.Context, f *os.File, q *queue.BoundedRecordQueue, sep rune) error {
	r := csv.NewReader(f)
	r.Comma = sep
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err != nil {
		return fmt.Errorf("record source: reading header row: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	for {
		values, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("record source: reading row: %w", err)
		}
		line := rowToJSON(headers, values)
		if err := q.Put(ctx, line); err != nil {
			return err
		}
	}
}

func (s *FileSource) readFixedWidth(ctx context.Context, f *os.File, q *queue.BoundedRecordQueue) error {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		return scanner.Err()
	}
	headerLine := scanner.Text()
	sep := "\t"
	if strings.Contains(headerLine, "|") {
		sep = "|"
	}
	headers := strings.Split(headerLine, sep)
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	for scanner.Scan() {
		line := scanner.Text()
		rowSep := sep
		if strings.Contains(line, "|") {
			rowSep = "|"
		} else if !strings.Contains(line, sep) {
			rowSep = "\t"
		}
		values := strings.Split(line, rowSep)
		rec := rowToJSON(headers, values)
		if err := q.Put(ctx, rec); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func rowToJSON(headers, values []string) string {
	var b strings.Builder
	b.WriteByte('{')
	n := len(headers)
	if len(values) < n {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(strings.TrimSpace(headers[i])))
		b.WriteByte(':')
		b.WriteString(strconv.Quote(strings.TrimSpace(values[i])))
	}
	b.WriteByte('}')
	return b.String()
}
