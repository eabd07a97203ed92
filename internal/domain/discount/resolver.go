package discount

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrLocationNotFound is returned by Repository lookups for unknown slugs.
var ErrLocationNotFound = errors.New("location not found")

// Resolver computes the location-based discount for a checkout subtotal.
type Resolver interface {
	Resolve(ctx context.Context, locationSlug string, subtotal decimal.Decimal) (Quote, error)
}

// RepoResolver implements Resolver by looking up location records from a
// Repository and applying them via Apply.
type RepoResolver struct {
	repo Repository
}

// NewRepoResolver creates a RepoResolver backed by the given Repository.
func NewRepoResolver(repo Repository) *RepoResolver {
	return &RepoResolver{repo: repo}
}

// Resolve looks up the buyer's assigned location and applies its percentage
// to the subtotal. Unknown or empty locations resolve to a zero discount with
// an empty location slug rather than an error: buyers assigned to a location
// without a record are not penalized.
func (r *RepoResolver) Resolve(ctx context.Context, locationSlug string, subtotal decimal.Decimal) (Quote, error) {
	slug := NormalizeSlug(locationSlug)
	if slug == "" {
		return Quote{Total: subtotal}, nil
	}

	loc, err := r.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return Quote{Total: subtotal}, nil
		}
		return Quote{}, errors.Wrap(err, "lookup location")
	}

	q := Apply(loc.Percentage, subtotal)
	q.LocationSlug = loc.Slug
	return q, nil
}
