package discount

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Location is an administrative grouping (store branch) that may carry a
// percentage discount. Read-only reference data from the checkout engine's
// perspective.
type Location struct {
	Slug        string
	DisplayName string
	// Percentage is in the range 0-100.
	Percentage decimal.Decimal
}

// Quote is the result of resolving a discount against a subtotal.
type Quote struct {
	Percentage decimal.Decimal
	Amount     decimal.Decimal
	Total      decimal.Decimal
	// LocationSlug is empty when the buyer's location matched no known
	// location record.
	LocationSlug string
}

// Repository provides lookup of location records by slug.
type Repository interface {
	// FindBySlug returns ErrLocationNotFound when no location matches.
	FindBySlug(ctx context.Context, slug string) (*Location, error)
	List(ctx context.Context) ([]Location, error)
}

// NormalizeSlug canonicalizes user-provided location identifiers.
func NormalizeSlug(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// FriendlyName derives a display name from a slug when no official name
// exists, e.g. "north-shore" becomes "North Shore".
func FriendlyName(slug string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(slug)
	parts := strings.Fields(cleaned)
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	if len(parts) == 0 {
		return slug
	}
	return strings.Join(parts, " ")
}

var hundred = decimal.NewFromInt(100)

// Apply computes the discount quote for a percentage against a subtotal.
// The amount is rounded half-up to 2 decimal places and clamped so it never
// exceeds the subtotal.
func Apply(percentage decimal.Decimal, subtotal decimal.Decimal) Quote {
	amount := subtotal.Mul(percentage).Div(hundred).Round(2)
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return Quote{
		Percentage: percentage,
		Amount:     amount,
		Total:      subtotal.Sub(amount),
	}
}
