package provider

import (
	"context"
	"strings"

	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/review"
)

// Router dispatches a review to the provider that serves its model.
type Router struct {
	catalog   *Catalog
	reviewers map[Vendor]Reviewer
}

// NewRouter builds a Router. Vendors missing from reviewers are treated as
// not configured.
func NewRouter(catalog *Catalog, reviewers map[Vendor]Reviewer) *Router {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	rs := make(map[Vendor]Reviewer, len(reviewers))
	for v, r := range reviewers {
		if r != nil {
			rs[v] = r
		}
	}
	return &Router{catalog: catalog, reviewers: rs}
}

func (r *Router) Catalog() *Catalog {
	return r.catalog
}

// Configured reports whether a provider for v is available.
func (r *Router) Configured(v Vendor) bool {
	_, ok := r.reviewers[v]
	return ok
}

func (r *Router) Review(ctx context.Context, req Request) (*review.ModelResponse, error) {
	if strings.TrimSpace(req.ModelID) == "" {
		return nil, apperr.Validation("model id is required")
	}

	vendor := r.catalog.ProviderFor(req.ModelID)
	rv, ok := r.reviewers[vendor]
	if !ok {
		return nil, apperr.Configuration(vendorService(vendor), "%s is not configured", vendorKeyName(vendor))
	}

	if req.MaxTokens == 0 {
		if m, ok := r.catalog.Lookup(req.ModelID); ok {
			req.MaxTokens = m.MaxTokens
		}
	}
	return rv.Review(ctx, req)
}

func vendorService(v Vendor) apperr.Service {
	if v == VendorGemini {
		return apperr.ServiceGemini
	}
	return apperr.ServiceClaude
}

func vendorKeyName(v Vendor) string {
	if v == VendorGemini {
		return "GEMINI_API_KEY"
	}
	return "ANTHROPIC_API_KEY"
}
