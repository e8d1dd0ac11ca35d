package ports

import "context"

// Evaluator is the pluggable expression engine used for predicates,
// captures and template rendering. Bindings hold the evaluation
// environment, conventionally {"event": ..., "scope": ...}.
type Evaluator interface {
	// Evaluate computes the value of an expression. Predicates are
	// interpreted by truthiness of the result.
	Evaluate(ctx context.Context, expr string, bindings map[string]any) (any, error)

	// Render interpolates a template string with the bindings.
	Render(ctx context.Context, tmpl string, bindings map[string]any) (string, error)
}
