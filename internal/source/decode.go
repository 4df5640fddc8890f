package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxLineBytes bounds a single JSON record; activity events carry long
// user-agent strings but stay far below this.
const maxLineBytes = 4 * 1024 * 1024

// decodeLines parses one JSON object per line from r into out, returning
// the number of records sent. A malformed line aborts with an error
// identifying the file and line number.
func decodeLines[T any](ctx context.Context, key string, r io.Reader, out chan<- T) (int, error) {
	if strings.HasSuffix(key, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return 0, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	n := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			return n, fmt.Errorf("line %d: %w", lineNo, err)
		}

		select {
		case out <- rec:
			n++
		case <-ctx.Done():
			return n, ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("scan: %w", err)
	}
	return n, nil
}
