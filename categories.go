package main

import (
	"github.com/google/uuid"
)

// categoryNamespace seeds the name-based ids of spreadsheet categories.
var categoryNamespace = uuid.MustParse("6f1c2a4e-3b7d-4c59-9e8a-2d4f61b0c7aa")

// categoryID derives a stable id from a category label. A blank label is the
// uncategorized sentinel.
func categoryID(label string) string {
	if label == "" {
		return UncategorizedID
	}
	return uuid.NewSHA1(categoryNamespace, []byte(label)).String()
}

// deriveCategories collects the distinct non-empty labels of quests in
// first-seen order.
func deriveCategories(quests []Quest) []Category {
	seen := make(map[string]bool)
	var out []Category
	for _, q := range quests {
		if q.CategoryName == "" || seen[q.CategoryName] {
			continue
		}
		seen[q.CategoryName] = true
		out = append(out, Category{ID: categoryID(q.CategoryName), Name: q.CategoryName})
	}
	return out
}

// findCategory resolves a derived category id to its label.
func findCategory(quests []Quest, id string) (Category, bool) {
	for _, c := range deriveCategories(quests) {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}
