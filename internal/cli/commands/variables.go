package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/leapstack-labs/tmplsync/pkg/params"
)

// parseVarFlags turns repeated --var NAME=value flags into params. The
// split is at the first '='.
func parseVarFlags(values []string) (*params.Params, error) {
	p := params.New()
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --var %q: expected NAME=value", v)
		}
		if err := p.Set(strings.TrimSpace(name), value); err != nil {
			return nil, fmt.Errorf("invalid --var %q: %w", v, err)
		}
	}
	return p, nil
}

// readVarsFile loads variables from a file. JSON and JSONC files hold an
// object of string values; anything else is read as name=value lines.
func readVarsFile(path string) (*params.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vars file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		var m map[string]string
		if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
			return nil, fmt.Errorf("parsing vars file %s: %w", path, err)
		}
		p, err := params.FromMap(m)
		if err != nil {
			return nil, fmt.Errorf("parsing vars file %s: %w", path, err)
		}
		return p, nil
	default:
		return params.Parse(string(data)), nil
	}
}

// collectVars merges a vars file with --var flags. Flags win.
func collectVars(varFlags []string, varsFile string) (*params.Params, error) {
	vars := params.New()
	if varsFile != "" {
		fromFile, err := readVarsFile(varsFile)
		if err != nil {
			return nil, err
		}
		vars = fromFile
	}

	fromFlags, err := parseVarFlags(varFlags)
	if err != nil {
		return nil, err
	}
	var setErr error
	fromFlags.Each(func(name, value string) {
		if err := vars.Set(name, value); err != nil && setErr == nil {
			setErr = err
		}
	})
	return vars, setErr
}

// parseScopedVars parses TEMPLATE:NAME=value flags into per-template params.
func parseScopedVars(values []string) (map[string]*params.Params, error) {
	out := make(map[string]*params.Params)
	for _, v := range values {
		scope, assignment, ok := strings.Cut(v, ":")
		if !ok || scope == "" {
			return nil, fmt.Errorf("invalid --var %q: expected TEMPLATE:NAME=value", v)
		}
		p, err := parseVarFlags([]string{assignment})
		if err != nil {
			return nil, err
		}
		if out[scope] == nil {
			out[scope] = params.New()
		}
		p.Each(func(name, value string) {
			_ = out[scope].Set(name, value)
		})
	}
	return out, nil
}
