package template

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{"duplicates collapsed", "$$A foo $$B $$A", []string{"A", "B"}},
		{"no placeholders", "kind: template\n", []string{}},
		{"empty document", "", []string{}},
		{"multiline", "a: $$X\nb: $$Y\nc: $$X", []string{"X", "Y"}},
		{"digits and underscore", "$$1_a $$_", []string{"1_a", "_"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractVariables(tt.doc))
		})
	}
}

func TestExtractVariables_OrderIndependent(t *testing.T) {
	a := ExtractVariables("$$B $$A $$C")
	b := ExtractVariables("$$C $$A $$B $$B")
	assert.Equal(t, a, b)
}

func TestExtractVariablesFrom(t *testing.T) {
	doc := "kind: template\nworkspace: /srv/$$BRANCH\nsteps:\n  - run: deploy $$ENV $$BRANCH"
	got, err := ExtractVariablesFrom(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"BRANCH", "ENV"}, got)
	assert.Equal(t, ExtractVariables(doc), got)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestExtractVariablesFrom_ReadError(t *testing.T) {
	_, err := ExtractVariablesFrom(failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestOccurrences(t *testing.T) {
	occ := Occurrences("$$A\n  $$A", "job.yaml")
	require.Len(t, occ, 2)
	assert.Equal(t, 1, occ[0].Pos.Line)
	assert.Equal(t, 2, occ[1].Pos.Line)
	assert.Equal(t, 3, occ[1].Pos.Column)
}
