package enums

import "fmt"

// ListingCondition describes the physical state of a listed book.
type ListingCondition string

const (
	ListingConditionNew     ListingCondition = "new"
	ListingConditionLikeNew ListingCondition = "like-new"
	ListingConditionGood    ListingCondition = "good"
	ListingConditionFair    ListingCondition = "fair"
)

var validListingConditions = []ListingCondition{
	ListingConditionNew,
	ListingConditionLikeNew,
	ListingConditionGood,
	ListingConditionFair,
}

// String implements fmt.Stringer.
func (c ListingCondition) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ListingCondition.
func (c ListingCondition) IsValid() bool {
	for _, candidate := range validListingConditions {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseListingCondition converts raw input into a ListingCondition.
func ParseListingCondition(value string) (ListingCondition, error) {
	for _, candidate := range validListingConditions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing condition %q", value)
}

// ListingCategory is the shelf a book is listed under.
type ListingCategory string

const (
	ListingCategoryFiction    ListingCategory = "fiction"
	ListingCategoryNonFiction ListingCategory = "non-fiction"
	ListingCategoryAcademic   ListingCategory = "academic"
	ListingCategoryChildren   ListingCategory = "children"
	ListingCategoryComics     ListingCategory = "comics"
	ListingCategoryTextbook   ListingCategory = "textbook"
	ListingCategoryOther      ListingCategory = "other"
)

var validListingCategories = []ListingCategory{
	ListingCategoryFiction,
	ListingCategoryNonFiction,
	ListingCategoryAcademic,
	ListingCategoryChildren,
	ListingCategoryComics,
	ListingCategoryTextbook,
	ListingCategoryOther,
}

// String implements fmt.Stringer.
func (c ListingCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ListingCategory.
func (c ListingCategory) IsValid() bool {
	for _, candidate := range validListingCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseListingCategory converts raw input into a ListingCategory.
func ParseListingCategory(value string) (ListingCategory, error) {
	for _, candidate := range validListingCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid listing category %q", value)
}
