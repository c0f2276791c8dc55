package enums

import "fmt"

// ListingStatus is the moderation state of a listing. Only PUBLISHED listings are searchable.
type ListingStatus string

const (
	ListingStatusDraft     ListingStatus = "DRAFT"
	ListingStatusPending   ListingStatus = "PENDING"
	ListingStatusPublished ListingStatus = "PUBLISHED"
	ListingStatusRejected  ListingStatus = "REJECTED"
	ListingStatusArchived  ListingStatus = "ARCHIVED"
)

var validListingStatuses = []ListingStatus{
	ListingStatusDraft,
	ListingStatusPending,
	ListingStatusPublished,
	ListingStatusRejected,
	ListingStatusArchived,
}

// IsValid reports whether the value is a known ListingStatus.
func (s ListingStatus) IsValid() bool {
	for _, candidate := range validListingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseListingStatus converts raw input into a ListingStatus.
func ParseListingStatus(value string) (ListingStatus, error) {
	for _, candidate := range validListingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing status %q", value)
}

type DealType string

const (
	DealTypeSale    DealType = "SALE"
	DealTypeRent    DealType = "RENT"
	DealTypeLeasing DealType = "LEASING"
)

type SellerType string

const (
	SellerTypePrivate SellerType = "PRIVATE"
	SellerTypeDealer  SellerType = "DEALER"
)
