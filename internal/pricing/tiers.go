package pricing

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Tier is a wholesale breakpoint: from MinQuantity units upward the flat Price applies.
type Tier struct {
	MinQuantity int   `json:"minQuantity"`
	Price       Money `json:"price"`
}

// Tiers is a set of wholesale breakpoints keyed by MinQuantity. The zero value holds no
// tiers.
type Tiers struct {
	// sorted by MinQuantity descending, thresholds unique
	items []Tier
}

// NewTiers validates and orders the provided breakpoints. Thresholds and prices must be
// positive and no two tiers may share a threshold.
func NewTiers(in []Tier) (Tiers, error) {
	if len(in) == 0 {
		return Tiers{}, nil
	}
	seen := make(map[int]struct{}, len(in))
	items := make([]Tier, 0, len(in))
	for _, t := range in {
		if t.MinQuantity <= 0 {
			return Tiers{}, invalidData(fmt.Sprintf("tier min quantity must be positive, got %d", t.MinQuantity))
		}
		if !t.Price.IsPositive() {
			return Tiers{}, invalidData(fmt.Sprintf("tier price for min quantity %d must be positive", t.MinQuantity))
		}
		if _, dup := seen[t.MinQuantity]; dup {
			return Tiers{}, invalidData(fmt.Sprintf("duplicate tier min quantity %d", t.MinQuantity))
		}
		seen[t.MinQuantity] = struct{}{}
		items = append(items, t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].MinQuantity > items[j].MinQuantity })
	return Tiers{items: items}, nil
}

// MustTiers is NewTiers for fixed data such as seeds; it panics on invalid input.
func MustTiers(in ...Tier) Tiers {
	t, err := NewTiers(in)
	if err != nil {
		panic(err)
	}
	return t
}

// Match returns the tier with the largest threshold not above qty.
func (t Tiers) Match(qty int) (Tier, bool) {
	for _, tier := range t.items {
		if qty >= tier.MinQuantity {
			return tier, true
		}
	}
	return Tier{}, false
}

// Len returns the number of tiers.
func (t Tiers) Len() int { return len(t.items) }

// Items returns the tiers ordered by ascending threshold.
func (t Tiers) Items() []Tier {
	out := make([]Tier, len(t.items))
	for i, tier := range t.items {
		out[len(t.items)-1-i] = tier
	}
	return out
}

// MarshalJSON encodes the tiers as an ascending array.
func (t Tiers) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Items())
}

// UnmarshalJSON decodes an array of tiers, enforcing the same rules as NewTiers.
func (t *Tiers) UnmarshalJSON(data []byte) error {
	var raw []Tier
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewTiers(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
