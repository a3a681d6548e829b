package apply

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/accbmad/accbmad/internal/utils"
)

// CommentPrefix marks manifest lines that are ignored.
const CommentPrefix = "#"

// Entry is one source|destination instruction.
type Entry struct {
	Line        int
	Source      string
	Destination string
	// Malformed holds the reason a line could not be split; the executor
	// records such entries as errors and moves on.
	Malformed string
}

// ParseManifest reads one "source|destination" entry per line. Blank lines and
// comment lines are skipped. Lines that do not split into two non-empty fields
// are kept as malformed entries so they are reported, not silently dropped.
func ParseManifest(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimSuffix(scanner.Text(), "\r"))
		if line == "" || strings.HasPrefix(line, CommentPrefix) {
			continue
		}
		entry := Entry{Line: lineNo}
		parts := strings.Split(line, "|")
		switch {
		case len(parts) != 2:
			entry.Source = line
			entry.Malformed = "expected source|destination"
		default:
			entry.Source = strings.TrimSpace(parts[0])
			entry.Destination = strings.TrimSpace(parts[1])
			if entry.Source == "" || entry.Destination == "" {
				entry.Malformed = "empty source or destination"
			}
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return entries, nil
}

// LoadManifest validates the manifest path itself and parses the file. A
// traversal segment in the path is fatal for the run.
func LoadManifest(path string) ([]Entry, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest path is required")
	}
	if err := utils.CheckTraversal(path); err != nil {
		return nil, fmt.Errorf("manifest path: %w", err)
	}
	f, err := os.Open(path) // #nosec G304 -- traversal-checked above
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return ParseManifest(f)
}
