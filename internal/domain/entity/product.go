package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Category values a product can be classified into.
const (
	CategoryMen   = "men"
	CategoryWomen = "women"
)

// RawRecord is one loosely-typed catalog entry as decoded from a source.
type RawRecord map[string]any

// Money is a currency-tagged decimal amount.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// Product is the canonical view of a catalog item for one poll cycle.
// A new value is built every cycle; stored values are replaced, never edited.
type Product struct {
	ID       string
	Name     string
	Price    Money
	HasPrice bool
	ImageURL string
	BuyURL   string

	Available bool

	// Variants lists in-stock size/variant labels, sorted.
	Variants []string

	// VariantSignature is empty when the source reported no variant data.
	VariantSignature string

	Category string
}

// Mens reports whether the product belongs to the men's collection.
func (p Product) Mens() bool {
	return p.Category == CategoryMen
}

// VariantSignatureOf hashes a set of in-stock variant labels.
// Order and duplicates do not affect the result.
func VariantSignatureOf(variants []string) string {
	if len(variants) == 0 {
		return ""
	}
	labels := NormalizeVariants(variants)
	sum := sha256.Sum256([]byte(strings.Join(labels, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// NormalizeVariants trims, dedups and sorts variant labels.
func NormalizeVariants(variants []string) []string {
	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// DiffFields lists the non-availability fields that differ between two values
// of the same product. Variant changes are reported as "variants".
func (p Product) DiffFields(other Product) []string {
	var fields []string
	if p.Name != other.Name {
		fields = append(fields, "name")
	}
	if p.HasPrice != other.HasPrice || !p.Price.Amount.Equal(other.Price.Amount) || p.Price.Currency != other.Price.Currency {
		fields = append(fields, "price")
	}
	if p.ImageURL != other.ImageURL {
		fields = append(fields, "image_url")
	}
	if p.BuyURL != other.BuyURL {
		fields = append(fields, "buy_url")
	}
	if p.VariantSignature != other.VariantSignature {
		fields = append(fields, "variants")
	}
	if p.Category != other.Category {
		fields = append(fields, "category")
	}
	return fields
}

// AddedVariants returns the labels in p that are missing from prev.
func (p Product) AddedVariants(prev Product) []string {
	old := make(map[string]struct{}, len(prev.Variants))
	for _, v := range prev.Variants {
		old[v] = struct{}{}
	}
	var added []string
	for _, v := range p.Variants {
		if _, ok := old[v]; !ok {
			added = append(added, v)
		}
	}
	return added
}

// Equal reports whether every tracked field matches.
func (p Product) Equal(other Product) bool {
	return p.ID == other.ID && p.Available == other.Available && len(p.DiffFields(other)) == 0
}
