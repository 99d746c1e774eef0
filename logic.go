package main

import (
	"math/rand"
	"strings"

	"github.com/sahilm/fuzzy"
)

const defaultDrawCount = 10

// drawQuests returns up to count quests in random order. The same seed over
// the same input always yields the same draw.
func drawQuests(quests []Quest, count int, seed int64) []Quest {
	r := rand.New(rand.NewSource(seed))
	out := append([]Quest(nil), quests...)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if count > len(out) {
		count = len(out)
	}
	return out[:count]
}

// questsInCategory keeps the quests whose category id is categoryID.
func questsInCategory(quests []Quest, categoryID string) []Quest {
	out := []Quest{}
	for _, q := range quests {
		if q.CategoryID == categoryID {
			out = append(out, q)
		}
	}
	return out
}

type questTitles []Quest

func (q questTitles) String(i int) string { return q[i].Title }
func (q questTitles) Len() int            { return len(q) }

// searchQuests ranks quests by fuzzy title match, best first. A blank query
// returns quests unchanged.
func searchQuests(quests []Quest, query string) []Quest {
	query = strings.TrimSpace(query)
	if query == "" {
		return quests
	}
	matches := fuzzy.FindFrom(query, questTitles(quests))
	out := make([]Quest, 0, len(matches))
	for _, m := range matches {
		out = append(out, quests[m.Index])
	}
	return out
}

// CategoryCount is one row of the admin stats.
type CategoryCount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// countByCategory counts quests per category, in category order. Quests
// whose category is not listed are counted under the uncategorized bucket.
func countByCategory(quests []Quest, cats []Category) []CategoryCount {
	index := make(map[string]int, len(cats)+1)
	out := make([]CategoryCount, 0, len(cats)+1)
	for _, c := range cats {
		index[c.ID] = len(out)
		out = append(out, CategoryCount{ID: c.ID, Name: c.Name})
	}
	for _, q := range quests {
		i, ok := index[q.CategoryID]
		if !ok {
			i, ok = index[UncategorizedID]
			if !ok {
				i = len(out)
				index[UncategorizedID] = i
				out = append(out, CategoryCount{ID: UncategorizedID, Name: uncategorizedName})
			}
		}
		out[i].Count++
	}
	return out
}
