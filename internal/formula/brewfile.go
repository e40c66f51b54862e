package formula

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	bverrors "brewvulns/internal/errors"

	"github.com/kballard/go-shellquote"
)

// ParseBrewfile returns the formula names declared with `brew` entries, in
// file order and without duplicates. tap, cask and mas entries are ignored.
func ParseBrewfile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, bverrors.NewDomainError("Brewfile not found: %s", path)
		}
		return nil, bverrors.NewDomainError("failed to read Brewfile %s: %v", path, err)
	}
	defer f.Close()

	return parseBrewfile(f)
}

func parseBrewfile(r io.Reader) ([]string, error) {
	var names []string
	seen := map[string]bool{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.Index(line, " #"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		words, err := shellquote.Split(line)
		if err != nil {
			slog.Warn("skipping unparseable Brewfile line", "line", lineNo, "error", err)
			continue
		}
		if len(words) < 2 || words[0] != "brew" {
			continue
		}

		name := strings.TrimSuffix(words[1], ",")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, bverrors.NewDomainError("failed to read Brewfile: %v", err)
	}
	return names, nil
}
