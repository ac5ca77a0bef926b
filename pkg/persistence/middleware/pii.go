package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/fsmtask/pkg/domain"
	"github.com/aretw0/fsmtask/pkg/ports"
)

// Mask replaces the values of masked fields.
const Mask = "***"

type piiMiddleware struct {
	next     ports.TaskStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of keys matching the patterns
// before they reach the store. Nested maps are masked too.
// The returned UpdateResult carries the masked object, since that is what was stored.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.TaskStore) ports.TaskStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Update(ctx context.Context, obj domain.Object) (domain.UpdateResult, error) {
	// Deep copy so the caller's object keeps its real values
	masked := deepCopyMap(obj)
	maskMap(masked, m.patterns)
	return m.next.Update(ctx, masked)
}

func (m *piiMiddleware) Search(ctx context.Context, req domain.SearchRequest) ([]domain.Object, error) {
	return m.next.Search(ctx, req)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(sub)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if sub, ok := v.(map[string]any); ok && !masked {
			maskMap(sub, patterns)
		}
	}
}
