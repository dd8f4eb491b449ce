package exam

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"certprep-server/models"
)

var canonicalCategories = []string{"Cloud Concepts", "Security", "Technology", "Billing"}

// makePool returns n questions spread round-robin over categories. Question i
// has correct index i%3.
func makePool(n int, categories ...string) []models.Question {
	if len(categories) == 0 {
		categories = canonicalCategories
	}
	pool := make([]models.Question, n)
	for i := range pool {
		pool[i] = models.Question{
			ID:           fmt.Sprintf("q%02d", i),
			Prompt:       fmt.Sprintf("Question %d?", i),
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: i % 3,
			Explanation:  fmt.Sprintf("Explanation %d", i),
			Category:     categories[i%len(categories)],
			Difficulty:   []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}[i%3],
		}
	}
	return pool
}

// memStore is a minimal ProgressStore for engine tests.
type memStore struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *memStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) raw(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
