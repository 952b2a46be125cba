// Package model defines the domain types shared by the prediction and rule-based paths.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Category is one of the fixed budget buckets.
type Category int

// Canonical category order. Predictor outputs map onto categories by
// position, so this order must not change and Savings must stay last.
const (
	Housing Category = iota
	Transportation
	Food
	Utilities
	Entertainment
	Savings
)

// NumCategories is the number of budget categories.
const NumCategories = 6

var categoryNames = [NumCategories]string{
	"Housing",
	"Transportation",
	"Food",
	"Utilities",
	"Entertainment",
	"Savings",
}

// ErrUnknownArea is returned when an area selector is neither rural nor urban.
var ErrUnknownArea = errors.New("unknown area type")

// Categories returns all categories in canonical order.
func Categories() []Category {
	out := make([]Category, NumCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// CategoryNames returns the category labels in canonical order.
func CategoryNames() []string {
	out := make([]string, NumCategories)
	copy(out, categoryNames[:])
	return out
}

func (c Category) String() string {
	if c < 0 || int(c) >= NumCategories {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Key returns the lowercase identifier used in config files and JSON payloads.
func (c Category) Key() string {
	return strings.ToLower(c.String())
}

// AreaType selects which model and percentage table apply.
type AreaType int

const (
	Rural AreaType = iota
	Urban
)

// AreaTypes returns every supported area type.
func AreaTypes() []AreaType {
	return []AreaType{Rural, Urban}
}

func (a AreaType) String() string {
	switch a {
	case Rural:
		return "Rural"
	case Urban:
		return "Urban"
	default:
		return fmt.Sprintf("AreaType(%d)", int(a))
	}
}

// Key returns the lowercase storage key for the area, e.g. "rural".
func (a AreaType) Key() string {
	return strings.ToLower(a.String())
}

// ParseAreaType resolves "rural" or "urban" in any letter case.
func ParseAreaType(s string) (AreaType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rural":
		return Rural, nil
	case "urban":
		return Urban, nil
	default:
		return 0, fmt.Errorf("%w: %q (want rural or urban)", ErrUnknownArea, s)
	}
}

// MarshalText encodes the area as its display name.
func (a AreaType) MarshalText() ([]byte, error) {
	if a != Rural && a != Urban {
		return nil, fmt.Errorf("%w: %d", ErrUnknownArea, int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText accepts any letter case.
func (a *AreaType) UnmarshalText(b []byte) error {
	parsed, err := ParseAreaType(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
