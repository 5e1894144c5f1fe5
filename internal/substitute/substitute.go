// Package substitute applies an ordered set of literal-replacement rules to
// a document stream, line by line.
//
// Every rule is matched against the original line. Matches are merged left
// to right; where two matches overlap, the one starting first wins, and on
// an equal start the earlier rule wins. Replacement text is written as-is
// and is never matched again, so substitution does not recurse.
package substitute

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// Rule replaces every match of Pattern with the literal Replacement.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Literal returns a rule that replaces the exact text match.
func Literal(match, replacement string) Rule {
	return Rule{
		Pattern:     regexp.MustCompile(regexp.QuoteMeta(match)),
		Replacement: replacement,
	}
}

// Stream copies src to dst applying rules. Memory use is bounded by the
// longest line. Line terminators are preserved.
//
// On error dst may hold a partial document and must be discarded.
func Stream(dst io.Writer, src io.Reader, rules []Rule) error {
	for i, r := range rules {
		if r.Pattern == nil {
			return fmt.Errorf("rule %d has no pattern", i)
		}
	}

	br := bufio.NewReader(src)
	bw := bufio.NewWriter(dst)

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("failed to read input: %w", readErr)
		}

		if line != "" {
			body, eol := splitEOL(line)
			if _, err := bw.WriteString(applyLine(body, rules)); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			if _, err := bw.WriteString(eol); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// String applies rules to s in memory.
func String(s string, rules []Rule) (string, error) {
	var sb strings.Builder
	if err := Stream(&sb, strings.NewReader(s), rules); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// span is one rule match within a line.
type span struct {
	start, end int
	rule       int
}

func applyLine(line string, rules []Rule) string {
	var spans []span
	for i, r := range rules {
		for _, loc := range r.Pattern.FindAllStringIndex(line, -1) {
			if loc[0] == loc[1] {
				// Empty matches would insert text without consuming any.
				continue
			}
			spans = append(spans, span{start: loc[0], end: loc[1], rule: i})
		}
	}
	if len(spans) == 0 {
		return line
	}

	sort.Slice(spans, func(a, b int) bool {
		if spans[a].start != spans[b].start {
			return spans[a].start < spans[b].start
		}
		return spans[a].rule < spans[b].rule
	})

	var sb strings.Builder
	sb.Grow(len(line))
	cursor := 0
	for _, s := range spans {
		if s.start < cursor {
			continue
		}
		sb.WriteString(line[cursor:s.start])
		sb.WriteString(rules[s.rule].Replacement)
		cursor = s.end
	}
	sb.WriteString(line[cursor:])
	return sb.String()
}

// splitEOL separates a line read by ReadString('\n') from its terminator.
func splitEOL(line string) (body, eol string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	default:
		return line, ""
	}
}
