package template

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
)

// ExtractVariables returns the distinct variable names referenced by doc,
// sorted. A document without placeholders yields an empty slice.
func ExtractVariables(doc string) []string {
	seen := make(map[string]struct{})
	collect(doc, seen)
	return sortedNames(seen)
}

// ExtractVariablesFrom is ExtractVariables over a stream. The document is
// consumed line by line; a placeholder never spans a line break.
func ExtractVariablesFrom(r io.Reader) ([]string, error) {
	seen := make(map[string]struct{})
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			collect(line, seen)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
	}
	return sortedNames(seen), nil
}

// Occurrences returns every placeholder token in doc in document order,
// duplicates included, with positions.
func Occurrences(doc, file string) []Token {
	var out []Token
	lex := NewLexer(doc, file)
	for tok := lex.Next(); tok.Type != TokenEOF; tok = lex.Next() {
		if tok.Type == TokenVariable {
			out = append(out, tok)
		}
	}
	return out
}

func collect(text string, seen map[string]struct{}) {
	lex := NewLexer(text, "")
	for tok := lex.Next(); tok.Type != TokenEOF; tok = lex.Next() {
		if tok.Type == TokenVariable {
			seen[tok.Value] = struct{}{}
		}
	}
}

func sortedNames(seen map[string]struct{}) []string {
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
