package output

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileSink writes structured output to a file. Bytes go to a temporary file
// next to the target, which replaces the target only on a successful Close,
// so an aborted run never leaves a truncated document behind.
type FileSink struct {
	path   string
	format string
	tmp    *os.File
	buf    *bufio.Writer
	mu     sync.Mutex
	agg    aggregate
}

// formatFromPath infers json or ndjson from the file extension.
func formatFromPath(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return "json", nil
	case ".ndjson", ".jsonl":
		return "ndjson", nil
	default:
		return "", fmt.Errorf("cannot infer output format from file extension %q", ext)
	}
}

func NewFileSink(path string, format string) (*FileSink, error) {
	if path == "" {
		return nil, errors.New("output path required")
	}
	if format == "" {
		f, err := formatFromPath(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	return &FileSink{
		path:   path,
		format: format,
		tmp:    tmp,
		buf:    bufio.NewWriter(tmp),
	}, nil
}

func (s *FileSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		s.agg.add(v)
		return nil
	}
	return streamEvent(s.buf, v)
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.format == "json" {
		err = s.agg.encode(s.buf)
	} else {
		err = s.buf.Flush()
	}
	err = errors.Join(err, s.tmp.Close())
	if err == nil {
		err = os.Rename(s.tmp.Name(), s.path)
	}
	if err != nil {
		_ = os.Remove(s.tmp.Name())
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
