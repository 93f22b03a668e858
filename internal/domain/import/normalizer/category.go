package normalizer

import (
	"strings"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/catalog"
)

// Categorizer assigns a category to a label using ordered rules. It is
// immutable and safe for concurrent use.
type Categorizer struct {
	rules []catalog.CategoryRule
}

var defaultCategorizer = NewCategorizer(catalog.DefaultCategoryRules())

// NewCategorizer creates a categorizer that tries rules in order.
func NewCategorizer(rules []catalog.CategoryRule) *Categorizer {
	return &Categorizer{rules: append([]catalog.CategoryRule(nil), rules...)}
}

// Categorize returns the category of the first rule matching the upper-cased
// label, or catalog.CategoryOther.
func (c *Categorizer) Categorize(label string) string {
	upper := strings.ToUpper(label)
	for _, rule := range c.rules {
		if rule.Pattern != nil && rule.Pattern.MatchString(upper) {
			return rule.Category
		}
	}
	return catalog.CategoryOther
}

// AutoCategorize categorizes label with the built-in rules.
func AutoCategorize(label string) string {
	return defaultCategorizer.Categorize(label)
}
