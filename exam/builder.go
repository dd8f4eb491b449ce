package exam

import (
	"math/rand"

	"certprep-server/models"
)

// AllValues matches every category or difficulty.
const AllValues = "all"

// Filters narrows a question pool by category and difficulty.
// Empty fields or "all" match everything.
type Filters struct {
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// Match reports whether q passes the filters.
func (f Filters) Match(q models.Question) bool {
	if f.Category != "" && f.Category != AllValues && q.Category != f.Category {
		return false
	}
	if f.Difficulty != "" && f.Difficulty != AllValues && string(q.Difficulty) != f.Difficulty {
		return false
	}
	return true
}

// BuildSpec describes the question list a session needs.
// With no Categories the build is a practice build: filters only, pool order kept.
type BuildSpec struct {
	TargetSize int
	Categories []string
	Filters    Filters
}

// Build produces the ordered question list for a session. An empty result means
// no content matched and is not an error.
func Build(pool []models.Question, spec BuildSpec, r *rand.Rand) []models.Question {
	filtered := Filter(pool, spec.Filters)
	if len(filtered) == 0 {
		return []models.Question{}
	}
	if len(spec.Categories) == 0 {
		return filtered
	}
	return balanced(filtered, spec.TargetSize, spec.Categories, r)
}

// Filter returns the questions of pool matching f, in pool order.
func Filter(pool []models.Question, f Filters) []models.Question {
	out := make([]models.Question, 0, len(pool))
	for _, q := range pool {
		if f.Match(q) {
			out = append(out, q)
		}
	}
	return out
}

// balanced draws one random question per canonical category present in the
// pool, fills the rest at random without replacement, shuffles the union and
// truncates it to target.
func balanced(pool []models.Question, target int, categories []string, r *rand.Rand) []models.Question {
	if target <= 0 {
		target = len(pool)
	}

	byCategory := make(map[string][]int)
	for i, q := range pool {
		byCategory[q.Category] = append(byCategory[q.Category], i)
	}

	used := make(map[int]bool, target)
	selected := make([]models.Question, 0, target)
	for _, category := range categories {
		candidates := byCategory[category]
		if len(candidates) == 0 {
			continue
		}
		idx := candidates[r.Intn(len(candidates))]
		if used[idx] {
			// duplicate category names in the canonical list
			continue
		}
		used[idx] = true
		selected = append(selected, pool[idx])
	}

	rest := make([]int, 0, len(pool)-len(used))
	for i := range pool {
		if !used[i] {
			rest = append(rest, i)
		}
	}
	shuffle(rest, r)
	for _, i := range rest {
		if len(selected) >= target {
			break
		}
		selected = append(selected, pool[i])
	}

	shuffle(selected, r)
	if len(selected) > target {
		selected = selected[:target]
	}
	return selected
}

// shuffle is a uniform Fisher-Yates permutation in place.
func shuffle[T any](s []T, r *rand.Rand) {
	r.Shuffle(len(s), func(i, j int) {
		s[i], s[j] = s[j], s[i]
	})
}
