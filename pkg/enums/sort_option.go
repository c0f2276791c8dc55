package enums

import (
	"fmt"
	"strings"
)

// SortOption selects the ordering of search results.
type SortOption string

const (
	SortRelevance SortOption = "relevance"
	SortNewest    SortOption = "newest"
	SortPriceAsc  SortOption = "price_asc"
	SortPriceDesc SortOption = "price_desc"
	SortYearDesc  SortOption = "year_desc"
)

var validSortOptions = []SortOption{
	SortRelevance,
	SortNewest,
	SortPriceAsc,
	SortPriceDesc,
	SortYearDesc,
}

// IsValid reports whether the value is a known SortOption.
func (s SortOption) IsValid() bool {
	for _, candidate := range validSortOptions {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSortOption converts raw input into a SortOption. Empty input means relevance.
func ParseSortOption(value string) (SortOption, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return SortRelevance, nil
	}
	for _, candidate := range validSortOptions {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sort option %q", value)
}
