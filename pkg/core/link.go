package core

import "github.com/leapstack-labs/tmplsync/pkg/params"

// TemplateLink records which template an implementation follows and the
// values it supplies for the template's variables.
type TemplateLink struct {
	TemplateName string
	Variables    *params.Params
}

// NewTemplateLink creates a link. A nil vars is treated as empty.
func NewTemplateLink(template string, vars *params.Params) *TemplateLink {
	if vars == nil {
		vars = params.New()
	}
	return &TemplateLink{TemplateName: template, Variables: vars}
}

// Clone returns a deep copy.
func (l *TemplateLink) Clone() *TemplateLink {
	if l == nil {
		return nil
	}
	return &TemplateLink{TemplateName: l.TemplateName, Variables: l.Variables.Clone()}
}

// VariablesText returns the variables in the persisted name=value format.
func (l *TemplateLink) VariablesText() string {
	if l == nil {
		return ""
	}
	return params.Format(l.Variables)
}
