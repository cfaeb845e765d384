package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tlind/bulkcat/pkg/engine"
)

// maxLineBytes bounds one input line. Catalog payloads are small; a line
// over 1 MiB is almost certainly a malformed file.
const maxLineBytes = 1 << 20

// inputItem is the JSONL wire shape of one work item.
type inputItem struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Path   string          `json:"path"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// readItems parses one JSON work item per line. Blank lines and #-comments
// are skipped. IDs must be unique: the engine's accounting is keyed on them.
func readItems(r io.Reader) ([]engine.Item, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var items []engine.Item
	seen := make(map[string]int)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var in inputItem
		if err := json.Unmarshal([]byte(line), &in); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNo, err)
		}
		if err := validateItem(in); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if prev, dup := seen[in.ID]; dup {
			return nil, fmt.Errorf("line %d: duplicate item id %q (first seen on line %d)", lineNo, in.ID, prev)
		}
		seen[in.ID] = lineNo

		items = append(items, engine.Item{
			ID:     in.ID,
			Method: strings.ToUpper(in.Method),
			Path:   in.Path,
			Body:   []byte(in.Body),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	return items, nil
}

func validateItem(in inputItem) error {
	if in.ID == "" {
		return fmt.Errorf("missing item id")
	}
	if in.Path == "" || !strings.HasPrefix(in.Path, "/") {
		return fmt.Errorf("item %q: path must start with /", in.ID)
	}
	switch strings.ToUpper(in.Method) {
	case http.MethodPut, http.MethodPost, http.MethodPatch, http.MethodDelete:
		return nil
	case "":
		return fmt.Errorf("item %q: missing method", in.ID)
	default:
		return fmt.Errorf("item %q: unsupported method %q", in.ID, in.Method)
	}
}
