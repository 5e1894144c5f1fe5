package engine

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/tmplsync/internal/template"
	"github.com/leapstack-labs/tmplsync/pkg/core"
)

// ResolveTemplate returns the named template.
func (e *Engine) ResolveTemplate(name string) (*core.TemplateItem, error) {
	item, ok := e.registry.ItemByName(name)
	if !ok {
		return nil, &core.ResolutionError{Name: name, Want: core.KindTemplate}
	}
	tmpl, ok := item.(*core.TemplateItem)
	if !ok {
		return nil, &core.ResolutionError{Name: name, Want: core.KindTemplate, Got: item.Kind()}
	}
	return tmpl, nil
}

// ResolveImplementation returns the named implementation.
func (e *Engine) ResolveImplementation(name string) (*core.ImplementationItem, error) {
	item, ok := e.registry.ItemByName(name)
	if !ok {
		return nil, &core.ResolutionError{Name: name, Want: core.KindImplementation}
	}
	impl, ok := item.(*core.ImplementationItem)
	if !ok {
		return nil, &core.ResolutionError{Name: name, Want: core.KindImplementation, Got: item.Kind()}
	}
	return impl, nil
}

// Templates returns every template sorted by name.
func (e *Engine) Templates() []*core.TemplateItem {
	var templates []*core.TemplateItem
	for _, item := range e.registry.AllItems() {
		if tmpl, ok := item.(*core.TemplateItem); ok {
			templates = append(templates, tmpl)
		}
	}
	return templates
}

// Implementations returns the implementations linked to template, sorted
// by name.
func (e *Engine) Implementations(template string) []*core.ImplementationItem {
	var impls []*core.ImplementationItem
	for _, item := range e.registry.AllItems() {
		if impl, ok := item.(*core.ImplementationItem); ok && impl.Implements(template) {
			impls = append(impls, impl)
		}
	}
	return impls
}

// ExtractVariableNames returns the distinct variables of the named
// template's document, sorted. A name that is not a template yields an
// empty list and no error.
func (e *Engine) ExtractVariableNames(name string) ([]string, error) {
	if _, err := e.ResolveTemplate(name); err != nil {
		return []string{}, nil
	}

	doc, err := e.registry.OpenDocument(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = doc.Close() }()

	names, err := template.ExtractVariablesFrom(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to extract variables of %s: %w", name, err)
	}
	return names, nil
}

// ValidateTemplateName checks a template name as entered in a form. The
// error message is suitable for display.
func (e *Engine) ValidateTemplateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Message: "Template is a required field.", Err: errTemplateRequired}
	}

	_, err := e.ResolveTemplate(name)
	if err == nil {
		return nil
	}
	re := err.(*core.ResolutionError)
	if re.Got == "" {
		return &ValidationError{Message: fmt.Sprintf("Project %s does not exist.", name), Err: re}
	}
	return &ValidationError{Message: fmt.Sprintf("Project %s is not a template.", name), Err: re}
}
