package engine

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/leapstack-labs/tmplsync/pkg/params"
)

// DefaultScaffoldSuffix is appended to scaffolded names when no suffix is
// given.
const DefaultScaffoldSuffix = "Impl"

// ScaffoldRequest describes a batch of implementations to create, one per
// template.
type ScaffoldRequest struct {
	Templates []string
	Prefix    string
	Suffix    string
	// Variables holds the values supplied for each template. A template
	// with no entry gets an empty link.
	Variables map[string]*params.Params
}

// ImplementationName returns the name scaffolded for template.
func (r ScaffoldRequest) ImplementationName(template string) string {
	suffix := r.Suffix
	if suffix == "" {
		suffix = DefaultScaffoldSuffix
	}
	return r.Prefix + template + suffix
}

// ScaffoldResult maps each template to the implementation created for it.
type ScaffoldResult struct {
	Created map[string]string
	Failed  map[string]error
}

// Scaffold creates and renders one implementation per requested template.
// Only variables the template actually uses are kept in the link. A
// failure for one template does not stop the others.
func (e *Engine) Scaffold(ctx context.Context, req ScaffoldRequest) (*ScaffoldResult, error) {
	result := &ScaffoldResult{
		Created: make(map[string]string),
		Failed:  make(map[string]error),
	}

	var combined error
	for _, tmplName := range req.Templates {
		if err := ctx.Err(); err != nil {
			return result, multierr.Append(combined, err)
		}

		if err := e.ValidateTemplateName(tmplName); err != nil {
			result.Failed[tmplName] = err
			combined = multierr.Append(combined, err)
			continue
		}

		names, err := e.ExtractVariableNames(tmplName)
		if err != nil {
			result.Failed[tmplName] = err
			combined = multierr.Append(combined, err)
			continue
		}
		supplied := req.Variables[tmplName]
		vars := params.New()
		for _, name := range names {
			if v, ok := supplied.Get(name); ok {
				_ = vars.Set(name, v)
			}
		}

		implName := req.ImplementationName(tmplName)
		if err := e.RenderAndPersist(ctx, tmplName, implName, vars); err != nil {
			err = fmt.Errorf("scaffold %s: %w", implName, err)
			result.Failed[tmplName] = err
			combined = multierr.Append(combined, err)
			continue
		}
		result.Created[tmplName] = implName
	}
	return result, combined
}
