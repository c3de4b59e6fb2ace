package knowledge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/coachai/coachai/internal/embedding"
)

// mockProvider returns canned vectors, keyed by input text with a
// shared fallback, so tests can shape similarity rankings.
type mockProvider struct {
	vectors   map[string][]float32
	fallback  []float32
	err       error
	callCount int
}

func (m *mockProvider) Embed(_ context.Context, texts []string, _ embedding.Purpose) ([][]float32, error) {
	m.callCount++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := m.vectors[text]; ok {
			out[i] = vec
			continue
		}
		if m.fallback != nil {
			out[i] = m.fallback
			continue
		}
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (m *mockProvider) Dimension() int { return 2 }

type mockIndex struct {
	matches   []Match
	searchErr error
	insertErr error
	deleted   bool
	deleteErr error

	insertCount int
	searchCount int
	deleteCount int
}

func (m *mockIndex) Insert(_ context.Context, _, _ string, _ []float32, _ map[string]string) (string, error) {
	m.insertCount++
	if m.insertErr != nil {
		return "", m.insertErr
	}
	return "emb-1", nil
}

func (m *mockIndex) DeleteBySource(_ context.Context, _, _ string) (bool, error) {
	m.deleteCount++
	return m.deleted, m.deleteErr
}

func (m *mockIndex) Search(_ context.Context, _ []float32, _ string, _ int) ([]Match, error) {
	m.searchCount++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.matches, nil
}

// fakeStore is an in-memory LessonStore with per-operation error
// injection and call counting.
type fakeStore struct {
	lessons []Lesson
	nextID  int

	insertLessonErr     error
	deleteLessonErr     error
	getErr              error
	listErr             error
	matchHits           []RemoteHit
	matchErr            error
	insertEmbeddingErr  error
	deleteEmbeddingsErr error

	listCalls            int
	matchCalls           int
	deleteLessonCalls    int
	insertEmbeddingCalls int
	deleteEmbeddingCalls int
}

func (s *fakeStore) InsertLesson(_ context.Context, lesson Lesson) (Lesson, error) {
	if s.insertLessonErr != nil {
		return Lesson{}, s.insertLessonErr
	}
	s.nextID++
	lesson.ID = fmt.Sprintf("lesson-%d", s.nextID)
	s.lessons = append(s.lessons, lesson)
	return lesson, nil
}

func (s *fakeStore) GetLesson(_ context.Context, id string) (*Lesson, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	for _, lesson := range s.lessons {
		if lesson.ID == id {
			return &lesson, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListLessons(_ context.Context, limit int) ([]Lesson, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := slices.Clone(s.lessons)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) DeleteLesson(_ context.Context, id string) error {
	s.deleteLessonCalls++
	if s.deleteLessonErr != nil {
		return s.deleteLessonErr
	}
	s.lessons = slices.DeleteFunc(s.lessons, func(l Lesson) bool { return l.ID == id })
	return nil
}

func (s *fakeStore) MatchLessons(_ context.Context, _ []float32, _ int) ([]RemoteHit, error) {
	s.matchCalls++
	if s.matchErr != nil {
		return nil, s.matchErr
	}
	return s.matchHits, nil
}

func (s *fakeStore) InsertEmbedding(_ context.Context, _, _ string, _ []float32, _ map[string]string) (string, error) {
	s.insertEmbeddingCalls++
	if s.insertEmbeddingErr != nil {
		return "", s.insertEmbeddingErr
	}
	return "remote-emb-1", nil
}

func (s *fakeStore) DeleteEmbeddingsBySource(_ context.Context, _, _ string) error {
	s.deleteEmbeddingCalls++
	return s.deleteEmbeddingsErr
}

func TestAddMemoryOnly(t *testing.T) {
	repo := NewRepository(&mockProvider{}, nil, nil, nil)
	ctx := context.Background()

	lesson, err := repo.Add(ctx, "Gravity", "Objects attract.", "Physics", "High School", "")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if lesson.ID == "" {
		t.Error("memory-only lesson got no id")
	}
	if lesson.Visibility != VisibilityPrivate {
		t.Errorf("Visibility = %q, want private", lesson.Visibility)
	}

	// Topic is not a uniqueness constraint.
	if _, err := repo.Add(ctx, "Gravity", "Again.", "Physics", "", ""); err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
	if got := len(repo.All()); got != 2 {
		t.Errorf("All() = %d lessons, want 2", got)
	}
}

func TestAddMemoryOnlyConcurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := NewRepository(&mockProvider{}, nil, nil, nil)
	ctx := context.Background()

	const adders, perAdder = 8, 32
	var wg sync.WaitGroup
	for w := 0; w < adders; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perAdder; i++ {
				topic := fmt.Sprintf("Topic %d-%d", w, i)
				if _, err := repo.Add(ctx, topic, "content", "Physics", "", ""); err != nil {
					t.Errorf("Add(%s) error = %v", topic, err)
				}
			}
		}(w)
	}
	wg.Wait()

	// Every concurrent Add must survive into the snapshot.
	all := repo.All()
	if len(all) != adders*perAdder {
		t.Fatalf("All() = %d lessons after %d concurrent Adds, want %d", len(all), adders*perAdder, adders*perAdder)
	}
	seen := make(map[string]bool, len(all))
	for _, lesson := range all {
		if seen[lesson.ID] {
			t.Errorf("duplicate lesson id %s in snapshot", lesson.ID)
		}
		seen[lesson.ID] = true
	}
}

func TestDeleteMemoryOnly(t *testing.T) {
	repo := NewRepository(&mockProvider{}, nil, nil, nil)
	ctx := context.Background()

	first, _ := repo.Add(ctx, "A", "a", "", "", "")
	repo.Add(ctx, "B", "b", "", "", "")

	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	all := repo.All()
	if len(all) != 1 || all[0].Topic != "B" {
		t.Errorf("All() = %+v, want only B", all)
	}
}

func TestAddWithStore(t *testing.T) {
	store := &fakeStore{}
	index := &mockIndex{}
	repo := NewRepository(&mockProvider{}, index, store, nil)

	lesson, err := repo.Add(context.Background(), "Cells", "Basic unit of life.", "Biology", "Middle School", "user-1")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if lesson.ID != "lesson-1" {
		t.Errorf("ID = %q, want store-assigned id", lesson.ID)
	}
	if index.insertCount != 1 {
		t.Errorf("index inserts = %d, want 1", index.insertCount)
	}
	if store.insertEmbeddingCalls != 0 {
		t.Errorf("remote embedding inserts = %d, want 0 when the index works", store.insertEmbeddingCalls)
	}
	if _, ok := repo.cache.Get("lesson-1"); !ok {
		t.Error("cache not refreshed after Add")
	}
}

func TestAddEmbedFailureRollsBack(t *testing.T) {
	store := &fakeStore{}
	provider := &mockProvider{err: errors.New("provider down")}
	repo := NewRepository(provider, nil, store, nil)
	ctx := context.Background()

	if _, err := repo.Add(ctx, "X", "content", "Math", "High School", ""); err == nil {
		t.Fatal("Add() succeeded with a failing provider")
	}
	if store.deleteLessonCalls != 1 {
		t.Errorf("compensating deletes = %d, want 1", store.deleteLessonCalls)
	}

	// The half-created lesson must not be reachable afterwards.
	hits, err := repo.Search(ctx, "X", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, hit := range hits {
		if hit.Topic == "X" {
			t.Error("rolled-back lesson still searchable")
		}
	}
	if len(store.lessons) != 0 {
		t.Errorf("store still holds %d lessons, want 0", len(store.lessons))
	}
}

func TestAddFallsBackToRemoteEmbedding(t *testing.T) {
	store := &fakeStore{}
	index := &mockIndex{insertErr: errors.New("pool closed")}
	repo := NewRepository(&mockProvider{}, index, store, nil)

	if _, err := repo.Add(context.Background(), "Acids", "pH below 7.", "Chemistry", "", ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if store.insertEmbeddingCalls != 1 {
		t.Errorf("remote embedding inserts = %d, want 1 after index failure", store.insertEmbeddingCalls)
	}
}

func TestAddRollsBackWhenAllEmbeddingWritesFail(t *testing.T) {
	store := &fakeStore{insertEmbeddingErr: errors.New("permission denied")}
	index := &mockIndex{insertErr: errors.New("pool closed")}
	repo := NewRepository(&mockProvider{}, index, store, nil)

	if _, err := repo.Add(context.Background(), "Acids", "pH below 7.", "Chemistry", "", ""); err == nil {
		t.Fatal("Add() succeeded with no embedding write path")
	}
	if store.deleteLessonCalls != 1 {
		t.Errorf("compensating deletes = %d, want 1", store.deleteLessonCalls)
	}
	if len(store.lessons) != 0 {
		t.Errorf("store still holds %d lessons, want 0", len(store.lessons))
	}
}

func TestAddReportsOriginalErrorWhenRollbackFails(t *testing.T) {
	providerErr := errors.New("provider down")
	store := &fakeStore{deleteLessonErr: errors.New("store down too")}
	repo := NewRepository(&mockProvider{err: providerErr}, nil, store, nil)

	_, err := repo.Add(context.Background(), "X", "content", "", "", "")
	if !errors.Is(err, providerErr) {
		t.Errorf("Add() error = %v, want the embedding failure, not the rollback failure", err)
	}
}

func TestLoad(t *testing.T) {
	store := &fakeStore{lessons: []Lesson{{ID: "1", Topic: "A"}}}
	repo := NewRepository(&mockProvider{}, nil, store, nil)
	ctx := context.Background()

	if err := repo.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(repo.All()) != 1 {
		t.Fatalf("All() = %d lessons, want 1", len(repo.All()))
	}

	// A failed refresh clears the cache rather than serving stale data.
	store.listErr = errors.New("connection refused")
	if err := repo.Load(ctx); err == nil {
		t.Fatal("Load() succeeded with a failing store")
	}
	if len(repo.All()) != 0 {
		t.Errorf("All() = %d lessons after failed Load, want 0", len(repo.All()))
	}
}

func TestLoadWithoutStore(t *testing.T) {
	repo := NewRepository(&mockProvider{}, nil, nil, nil)
	if err := repo.Load(context.Background()); err != nil {
		t.Errorf("Load() error = %v, want nil without a store", err)
	}
}

func TestDeleteWithStore(t *testing.T) {
	tests := []struct {
		name            string
		indexDeleted    bool
		indexErr        error
		wantRemoteCalls int
	}{
		{
			name:            "index removed the embedding",
			indexDeleted:    true,
			wantRemoteCalls: 0,
		},
		{
			name:            "index had nothing",
			indexDeleted:    false,
			wantRemoteCalls: 1,
		},
		{
			name:            "index errored",
			indexErr:        errors.New("pool closed"),
			wantRemoteCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{lessons: []Lesson{{ID: "lesson-1", Topic: "A"}}}
			index := &mockIndex{deleted: tt.indexDeleted, deleteErr: tt.indexErr}
			repo := NewRepository(&mockProvider{}, index, store, nil)

			if err := repo.Delete(context.Background(), "lesson-1"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if len(store.lessons) != 0 {
				t.Error("lesson row survived Delete")
			}
			if index.deleteCount != 1 {
				t.Errorf("index deletes = %d, want 1", index.deleteCount)
			}
			if store.deleteEmbeddingCalls != tt.wantRemoteCalls {
				t.Errorf("remote embedding deletes = %d, want %d", store.deleteEmbeddingCalls, tt.wantRemoteCalls)
			}
		})
	}
}

func TestDeleteLessonFailureIsFatal(t *testing.T) {
	store := &fakeStore{
		lessons:         []Lesson{{ID: "lesson-1"}},
		deleteLessonErr: errors.New("row locked"),
	}
	repo := NewRepository(&mockProvider{}, &mockIndex{}, store, nil)

	if err := repo.Delete(context.Background(), "lesson-1"); err == nil {
		t.Fatal("Delete() succeeded though the lesson row survived")
	}
	if store.deleteEmbeddingCalls != 0 {
		t.Error("embedding cleanup ran despite the lesson delete failing")
	}
}
