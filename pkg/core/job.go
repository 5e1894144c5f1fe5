package core

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// JobSpec is the deserialized form of a job document (job.yaml).
type JobSpec struct {
	// Kind is the identity tag: "template", "implementation", or anything
	// else for a plain job.
	Kind string `yaml:"kind"`

	// Workspace is a custom workspace directory; empty means the runner
	// allocates one.
	Workspace string `yaml:"workspace,omitempty"`

	Description string            `yaml:"description,omitempty"`
	Labels      []string          `yaml:"labels,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	Triggers    []Trigger         `yaml:"triggers,omitempty"`
	Steps       []Step            `yaml:"steps,omitempty"`
}

// Step is one build step.
type Step struct {
	Name string `yaml:"name"`
	Run  string `yaml:"run"`
	Dir  string `yaml:"dir,omitempty"`
}

// Trigger starts a job.
type Trigger struct {
	Type     string `yaml:"type"`
	Schedule string `yaml:"schedule,omitempty"`
	Branch   string `yaml:"branch,omitempty"`
}

// ParseJobSpec decodes a job document. An empty document yields an empty
// spec, which is a plain job.
func ParseJobSpec(r io.Reader) (*JobSpec, error) {
	spec := &JobSpec{}
	if err := yaml.NewDecoder(r).Decode(spec); err != nil {
		if errors.Is(err, io.EOF) {
			return spec, nil
		}
		return nil, fmt.Errorf("invalid job document: %w", err)
	}
	return spec, nil
}
