package recognizer

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Charset maps model output indices to dictionary tokens. Index 0 is the CTC
// blank; dictionary tokens start at index 1.
type Charset struct {
	tokens []string
}

// LoadCharset loads a dictionary file where each non-empty line is a token.
// Leading and trailing whitespace is trimmed; a UTF-8 BOM on the first line
// is removed.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: opening user-provided dictionary is expected
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	tokens := make([]string, 0, 512)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		if line != "" {
			tokens = append(tokens, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, errors.New("dictionary contains no tokens")
	}
	return &Charset{tokens: tokens}, nil
}

// Size returns the number of dictionary tokens, excluding the blank.
func (c *Charset) Size() int { return len(c.tokens) }

// Token returns the token for a model output index, or "" for the blank and
// out-of-range indices.
func (c *Charset) Token(idx int) string {
	if idx <= 0 || idx > len(c.tokens) {
		return ""
	}
	return c.tokens[idx-1]
}
