// Package prompts loads the system prompts used by generation profiles.
//
// Defaults are embedded markdown files. An operator may override any of them
// by placing a file with the same name in a prompts directory. Markdown tables
// are flattened into one fact per line so models receive compact plain text.
package prompts

import (
	"bufio"
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed defaults/*.md
var defaults embed.FS

// File names of the known prompts.
const (
	Vision = "vision.md"
	Meal   = "meal.md"
	Chat   = "chat.md"
)

// Set holds the flattened system prompts by file name.
type Set map[string]string

// Get returns the prompt for name, or "" when unknown.
func (s Set) Get(name string) string { return s[name] }

// Load returns the embedded defaults overlaid with any files found in dir.
// An empty dir loads only the defaults. A missing override file is not an
// error; an unreadable or empty one is.
func Load(dir string) (Set, error) {
	out := make(Set, 3)
	for _, name := range []string{Vision, Meal, Chat} {
		raw, err := defaults.ReadFile("defaults/" + name)
		if err != nil {
			return nil, fmt.Errorf("embedded prompt %s: %w", name, err)
		}
		if dir != "" {
			b, err := os.ReadFile(filepath.Join(dir, name))
			switch {
			case err == nil:
				raw = b
			case errors.Is(err, fs.ErrNotExist):
			default:
				return nil, fmt.Errorf("read prompt %s: %w", name, err)
			}
		}
		text, err := Flatten(raw)
		if err != nil {
			return nil, fmt.Errorf("flatten prompt %s: %w", name, err)
		}
		if text == "" {
			return nil, fmt.Errorf("prompt %s is empty", name)
		}
		out[name] = text
	}
	return out, nil
}

// Flatten converts markdown into plain prompt text:
//   - table rows become "cell: cell: cell" lines; separator rows are dropped
//   - runs of blank lines collapse to a single blank line
//   - the result has no leading or trailing whitespace
func Flatten(src []byte) (string, error) {
	var b strings.Builder
	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	wroteBlank := true // start true to avoid a leading blank

	writeLine := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
		wroteBlank = false
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			if !wroteBlank {
				b.WriteByte('\n')
				wroteBlank = true
			}
			continue
		}

		// table row: "| ... |"
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			cols := strings.Split(strings.Trim(line, "|"), "|")
			allSep := true
			cleaned := make([]string, 0, len(cols))
			for _, c := range cols {
				cell := strings.TrimSpace(c)
				if cell != "" {
					cleaned = append(cleaned, cell)
				}
				tmp := strings.NewReplacer(":", "", "-", "").Replace(cell)
				if strings.TrimSpace(tmp) != "" {
					allSep = false
				}
			}
			if allSep || len(cleaned) == 0 {
				continue
			}
			writeLine(strings.Join(cleaned, ": "))
			continue
		}

		writeLine(line)
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}
