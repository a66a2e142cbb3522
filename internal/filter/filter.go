// Package filter implements the in-memory predicate pipeline applied to
// fetched collections. All functions are pure and order-preserving: entries
// that pass every predicate come out in their original order.
package filter

import (
	"math"
	"strconv"
	"strings"

	"propdesk/internal/model"
)

// View names one of the six listing surfaces. Each view carries a fixed
// structural gate on transaction type and status; the gate is not
// user-configurable.
type View string

const (
	SellAvailable  View = "sell-available"
	RentAvailable  View = "rent-available"
	LeaseAvailable View = "lease-available"
	SellSold       View = "sell-sold"
	RentSold       View = "rent-sold"
	LeaseSold      View = "lease-sold"
)

// Views lists every listing view.
var Views = []View{SellAvailable, RentAvailable, LeaseAvailable, SellSold, RentSold, LeaseSold}

// Gate returns the structural (transactionType, status) pair for the view.
func (v View) Gate() (model.TransactionType, model.Status) {
	switch v {
	case SellAvailable:
		return model.TransactionSale, model.StatusAvailable
	case RentAvailable:
		return model.TransactionRent, model.StatusAvailable
	case LeaseAvailable:
		return model.TransactionLease, model.StatusAvailable
	case SellSold:
		return model.TransactionSale, model.StatusSold
	case RentSold:
		return model.TransactionRent, model.StatusSold
	default:
		return model.TransactionLease, model.StatusSold
	}
}

// Gate keeps the properties belonging to the view.
func Gate(props []model.Property, v View) []model.Property {
	tt, st := v.Gate()
	out := make([]model.Property, 0, len(props))
	for _, p := range props {
		if p.TransactionType == tt && p.Status == st {
			out = append(out, p)
		}
	}
	return out
}

// Apply runs the user-controlled predicates over the collection. With an
// empty filter state the input comes back unchanged, and Apply is
// idempotent for any state. The structural view gate is separate; see Gate
// and ApplyView.
func Apply(props []model.Property, fs model.FilterState) []model.Property {
	if fs.Empty() {
		return props
	}
	minPrice, maxPrice := priceBounds(fs)
	out := make([]model.Property, 0, len(props))
	for _, p := range props {
		if p.Price < minPrice || p.Price > maxPrice {
			continue
		}
		if fs.BHK != "" && p.BHK != fs.BHK {
			continue
		}
		if !containsFold(p.Ownership, fs.Ownership) {
			continue
		}
		if fs.Sector != "" && p.Sector != fs.Sector {
			continue
		}
		if !containsFold(string(p.Category), fs.Category) {
			continue
		}
		if !matchesText(p, fs.SearchText) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ApplyView gates the collection for the view, then applies the user
// filters.
func ApplyView(props []model.Property, v View, fs model.FilterState) []model.Property {
	return Apply(Gate(props, v), fs)
}

// priceBounds parses the price range, defaulting to [0, +inf). Unparsable
// input counts as unset so a half-typed number never empties the view.
func priceBounds(fs model.FilterState) (int64, int64) {
	min := int64(0)
	max := int64(math.MaxInt64)
	if fs.MinPrice != "" {
		if n, err := strconv.ParseInt(fs.MinPrice, 10, 64); err == nil {
			min = n
		}
	}
	if fs.MaxPrice != "" {
		if n, err := strconv.ParseInt(fs.MaxPrice, 10, 64); err == nil {
			max = n
		}
	}
	return min, max
}

// containsFold reports whether haystack contains needle case-insensitively;
// an empty needle always matches.
func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// matchesText matches the search string against each searchable field
// independently. Fields are never concatenated, so "B-12" does not match a
// property with block "B" and house number "12".
func matchesText(p model.Property, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, field := range []string{
		p.Title, p.HouseNo, p.ShopNo, p.Block, p.Pocket, p.Reference, p.Sector,
	} {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// ApplyClients filters the roster in memory: exact requirement match plus
// per-field free-text search over name, phone and description. This is the
// instant-feedback complement of the server-side search/requirement params.
func ApplyClients(clients []model.Client, requirement, search string) []model.Client {
	out := make([]model.Client, 0, len(clients))
	needle := strings.ToLower(search)
	for _, c := range clients {
		if requirement != "" && c.Requirement != requirement {
			continue
		}
		if needle != "" {
			hit := false
			for _, field := range []string{c.ClientName, c.PhoneNumber, c.Description} {
				if field != "" && strings.Contains(strings.ToLower(field), needle) {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}
