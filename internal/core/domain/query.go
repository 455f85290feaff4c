package domain

import "strings"

// Category is a provider category slug. The empty category means "all".
type Category string

const CategoryAll Category = ""

// Categories offered by the app's category chips.
var Categories = []Category{
	CategoryAll,
	"business",
	"tech",
	"sports",
	"entertainment",
	"science",
	"politics",
	"world",
	"health",
}

// ParseCategory maps user input ("all", "", "Tech") onto a Category.
func ParseCategory(s string) Category {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return CategoryAll
	}
	return Category(s)
}

// String returns "all" for the empty category.
func (c Category) String() string {
	if c == CategoryAll {
		return "all"
	}
	return string(c)
}

// PageQuery describes one page request against the provider.
type PageQuery struct {
	Language string
	Locale   string
	Category Category
	Search   string
	Limit    int
	Page     int
}

// HeadlineQuery describes the headline stream request.
type HeadlineQuery struct {
	Language    string
	Locale      string
	PerCategory int
	Top         int
}

// MarshalText renders the category as String does.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a category with ParseCategory.
func (c *Category) UnmarshalText(b []byte) error {
	*c = ParseCategory(string(b))
	return nil
}
