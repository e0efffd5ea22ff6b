package internal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyCorpus = errors.New("corpus is empty")
	ErrNotFitted   = errors.New("pipeline not fitted")
	ErrNoEmbedder  = errors.New("no embedder configured")
	ErrNoProvider  = errors.New("no summary provider configured")
	ErrNoChanges   = errors.New("no changes to commit")
)

// jsonlDoc covers the common field names for one document per line.
type jsonlDoc struct {
	Text    string `json:"text"`
	Content string `json:"content"`
}

// LoadCorpus reads documents from a file. Supported formats:
// .jsonl (one object per line with a "text" or "content" field),
// .json (an array of strings) and plain text (one document per line).
func LoadCorpus(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return readJSONLines(f)
	case ".json":
		var texts []string
		if err := json.NewDecoder(f).Decode(&texts); err != nil {
			return nil, fmt.Errorf("decode corpus: %w", err)
		}
		return texts, nil
	default:
		return readTextLines(f)
	}
}

func readJSONLines(f *os.File) ([]string, error) {
	var texts []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var doc jsonlDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		text := doc.Text
		if text == "" {
			text = doc.Content
		}
		if text == "" {
			continue
		}
		texts = append(texts, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}

	return texts, nil
}

func readTextLines(f *os.File) ([]string, error) {
	var texts []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		texts = append(texts, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}

	return texts, nil
}

// BatchAndJoin groups consecutive documents into batches of size and
// joins each batch with a newline. A size of 1 or less returns the
// input unchanged.
func BatchAndJoin(texts []string, size int) []string {
	if size <= 1 {
		return texts
	}

	joined := make([]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		joined = append(joined, strings.Join(texts[start:end], "\n"))
	}

	return joined
}

// Truncate shortens text to at most n runes, keeping the string valid.
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
