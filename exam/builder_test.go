package exam

import (
	"math/rand"
	"testing"

	"certprep-server/models"
)

func categoriesOf(qs []models.Question) map[string]int {
	out := make(map[string]int)
	for _, q := range qs {
		out[q.Category]++
	}
	return out
}

func assertUnique(t *testing.T, qs []models.Question) {
	t.Helper()
	seen := make(map[string]bool, len(qs))
	for _, q := range qs {
		if seen[q.ID] {
			t.Fatalf("question %s selected twice", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestBuildMockCoversEveryCategory(t *testing.T) {
	pool := makePool(20)
	for seed := int64(0); seed < 200; seed++ {
		got := Build(pool, BuildSpec{TargetSize: 5, Categories: canonicalCategories}, rand.New(rand.NewSource(seed)))
		if len(got) != 5 {
			t.Fatalf("seed %d: got %d questions, want 5", seed, len(got))
		}
		assertUnique(t, got)
		cats := categoriesOf(got)
		for _, c := range canonicalCategories {
			if cats[c] == 0 {
				t.Fatalf("seed %d: category %q missing from %v", seed, c, cats)
			}
		}
	}
}

func TestBuildMockSmallPool(t *testing.T) {
	pool := makePool(3)
	got := Build(pool, BuildSpec{TargetSize: 65, Categories: canonicalCategories}, rand.New(rand.NewSource(1)))
	if len(got) != 3 {
		t.Fatalf("got %d questions, want the whole pool of 3", len(got))
	}
	assertUnique(t, got)
}

func TestBuildMockSkipsAbsentCategories(t *testing.T) {
	pool := makePool(6, "Security", "Billing")
	got := Build(pool, BuildSpec{TargetSize: 4, Categories: canonicalCategories}, rand.New(rand.NewSource(3)))
	if len(got) != 4 {
		t.Fatalf("got %d questions, want 4", len(got))
	}
	cats := categoriesOf(got)
	if cats["Security"] == 0 || cats["Billing"] == 0 {
		t.Errorf("present categories not covered: %v", cats)
	}
}

func TestBuildMockShuffles(t *testing.T) {
	pool := makePool(40)
	first := Build(pool, BuildSpec{TargetSize: 40, Categories: canonicalCategories}, rand.New(rand.NewSource(1)))
	second := Build(pool, BuildSpec{TargetSize: 40, Categories: canonicalCategories}, rand.New(rand.NewSource(2)))
	same := true
	for i := range first {
		if first[i].ID != second[i].ID {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced the same order")
	}
}

func TestBuildMockPositionsAreUniform(t *testing.T) {
	pool := makePool(4)
	counts := make(map[string]int)
	r := rand.New(rand.NewSource(42))
	const runs = 4000
	for i := 0; i < runs; i++ {
		got := Build(pool, BuildSpec{TargetSize: 4, Categories: canonicalCategories}, r)
		counts[got[0].ID]++
	}
	for id, n := range counts {
		// expected 1000 each
		if n < 850 || n > 1150 {
			t.Errorf("question %s led %d of %d sessions, want about %d", id, n, runs, runs/4)
		}
	}
}

func TestBuildPracticeKeepsPoolOrder(t *testing.T) {
	pool := makePool(12)
	got := Build(pool, BuildSpec{Filters: Filters{Category: "Security", Difficulty: AllValues}}, rand.New(rand.NewSource(1)))
	want := []string{"q01", "q05", "q09"}
	if len(got) != len(want) {
		t.Fatalf("got %d questions, want %d", len(got), len(want))
	}
	for i, q := range got {
		if q.ID != want[i] {
			t.Errorf("position %d = %s, want %s", i, q.ID, want[i])
		}
	}
}

func TestBuildPracticeDifficultyFilter(t *testing.T) {
	pool := makePool(12)
	got := Build(pool, BuildSpec{Filters: Filters{Category: AllValues, Difficulty: string(models.DifficultyHard)}}, nil)
	if len(got) != 4 {
		t.Fatalf("got %d hard questions, want 4", len(got))
	}
	for _, q := range got {
		if q.Difficulty != models.DifficultyHard {
			t.Errorf("question %s has difficulty %s", q.ID, q.Difficulty)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	tests := []struct {
		name string
		pool []models.Question
		spec BuildSpec
	}{
		{"empty pool", nil, BuildSpec{}},
		{"no filter match", makePool(8), BuildSpec{Filters: Filters{Category: "Networking"}}},
		{"empty mock pool", nil, BuildSpec{TargetSize: 5, Categories: canonicalCategories}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(tt.pool, tt.spec, rand.New(rand.NewSource(1)))
			if got == nil || len(got) != 0 {
				t.Errorf("Build() = %v, want empty non-nil slice", got)
			}
		})
	}
}

func TestBuildDoesNotMutatePool(t *testing.T) {
	pool := makePool(10)
	before := make([]string, len(pool))
	for i, q := range pool {
		before[i] = q.ID
	}
	Build(pool, BuildSpec{TargetSize: 5, Categories: canonicalCategories}, rand.New(rand.NewSource(9)))
	for i, q := range pool {
		if q.ID != before[i] {
			t.Fatalf("pool reordered at %d: %s != %s", i, q.ID, before[i])
		}
	}
}
