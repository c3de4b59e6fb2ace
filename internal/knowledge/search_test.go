package knowledge

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestSearchInvalidTopK(t *testing.T) {
	repo := NewRepository(&mockProvider{}, nil, nil, nil)
	if _, err := repo.Search(context.Background(), "q", 0); err == nil {
		t.Error("Search() accepted topK 0")
	}
}

func TestSearchDirectTierShortCircuits(t *testing.T) {
	store := &fakeStore{
		lessons:   []Lesson{{ID: "lesson-1", Topic: "Gravity", Content: "Objects attract."}},
		matchHits: []RemoteHit{{Lesson: Lesson{ID: "lesson-9", Topic: "Decoy"}}},
	}
	index := &mockIndex{matches: []Match{{SourceID: "lesson-1", Distance: 0.25}}}
	provider := &mockProvider{}
	repo := NewRepository(provider, index, store, nil)

	hits, err := repo.Search(context.Background(), "why do things fall", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Topic != "Gravity" {
		t.Errorf("Topic = %q, want Gravity", hits[0].Topic)
	}
	if want := 1.0 / 1.25; hits[0].Similarity != want {
		t.Errorf("Similarity = %v, want %v", hits[0].Similarity, want)
	}

	// Later tiers are never consulted once the direct tier produced hits.
	if store.matchCalls != 0 {
		t.Errorf("remote match calls = %d, want 0", store.matchCalls)
	}
	if provider.callCount != 1 {
		t.Errorf("embed calls = %d, want 1 (query only)", provider.callCount)
	}
}

func TestSearchDirectTierDropsUnresolvableMatches(t *testing.T) {
	store := &fakeStore{
		matchHits: []RemoteHit{{Lesson: Lesson{ID: "lesson-2", Topic: "Inertia"}, Distance: 1}},
	}
	index := &mockIndex{matches: []Match{{SourceID: "deleted-lesson", Distance: 0.1}}}
	repo := NewRepository(&mockProvider{}, index, store, nil)

	hits, err := repo.Search(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	// The dangling match resolves to nothing, so the remote tier answers.
	if len(hits) != 1 || hits[0].Topic != "Inertia" {
		t.Fatalf("hits = %+v, want the remote Inertia hit", hits)
	}
	if hits[0].Similarity != 0.5 {
		t.Errorf("Similarity = %v, want 0.5 for distance 1", hits[0].Similarity)
	}
}

func TestSearchDirectTierErrorFallsThrough(t *testing.T) {
	store := &fakeStore{
		matchHits: []RemoteHit{{Lesson: Lesson{ID: "lesson-2", Topic: "Inertia"}}},
	}
	index := &mockIndex{searchErr: errors.New("connection refused")}
	repo := NewRepository(&mockProvider{}, index, store, nil)

	hits, err := repo.Search(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Search() error = %v, want tier failure absorbed", err)
	}
	if len(hits) != 1 || hits[0].Topic != "Inertia" {
		t.Errorf("hits = %+v, want the remote tier result", hits)
	}
	if store.matchCalls != 1 {
		t.Errorf("remote match calls = %d, want 1", store.matchCalls)
	}
}

func TestSearchRemoteTierErrorFallsThroughToCache(t *testing.T) {
	store := &fakeStore{
		lessons:  []Lesson{{ID: "1", Topic: "Gravity", Content: "Objects attract."}},
		matchErr: errors.New("rpc failed"),
	}
	repo := NewRepository(&mockProvider{}, nil, store, nil)

	hits, err := repo.Search(context.Background(), "gravity", 3)
	if err != nil {
		t.Fatalf("Search() error = %v, want tier failure absorbed", err)
	}
	if len(hits) != 1 || hits[0].Topic != "Gravity" {
		t.Errorf("hits = %+v, want the cached lesson", hits)
	}
}

func TestSearchCacheTierRanking(t *testing.T) {
	provider := &mockProvider{
		vectors: map[string][]float32{
			"Aligned: close to the query":      {1, 0},
			"Orthogonal: unrelated":            {0, 1},
			"Also aligned: equally close":      {1, 0},
			"what matches the aligned lessons": {1, 0},
		},
	}
	repo := NewRepository(provider, nil, nil, nil)
	ctx := context.Background()

	repo.Add(ctx, "Aligned", "close to the query", "", "", "")
	repo.Add(ctx, "Orthogonal", "unrelated", "", "", "")
	repo.Add(ctx, "Also aligned", "equally close", "", "", "")

	hits, err := repo.Search(ctx, "what matches the aligned lessons", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}

	// Equal similarities keep cache insertion order.
	if hits[0].Topic != "Aligned" || hits[1].Topic != "Also aligned" {
		t.Errorf("order = %q, %q; want insertion order among ties", hits[0].Topic, hits[1].Topic)
	}

	// topK above the corpus size returns everything, sorted descending.
	hits, err = repo.Search(ctx, "what matches the aligned lessons", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want all 3", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Similarity > hits[i-1].Similarity {
			t.Errorf("hits not sorted descending at %d", i)
		}
	}
	if hits[2].Topic != "Orthogonal" {
		t.Errorf("weakest hit = %q, want Orthogonal", hits[2].Topic)
	}
}

func TestSearchCacheTierRefreshesEmptyCache(t *testing.T) {
	store := &fakeStore{lessons: []Lesson{{ID: "1", Topic: "Gravity", Content: "Objects attract."}}}
	repo := NewRepository(&mockProvider{}, nil, store, nil)

	hits, err := repo.Search(context.Background(), "gravity", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if store.listCalls == 0 {
		t.Error("empty cache was not refreshed before the in-memory tier")
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits, want 1", len(hits))
	}
}

func TestSearchCacheTierEmbedFailureReturnsEmpty(t *testing.T) {
	provider := &mockProvider{}
	repo := NewRepository(provider, nil, nil, nil)
	ctx := context.Background()

	repo.Add(ctx, "Gravity", "Objects attract.", "", "", "")
	provider.err = errors.New("provider down")

	hits, err := repo.Search(ctx, "gravity", 3)
	if err != nil {
		t.Fatalf("Search() error = %v, want degraded empty result", err)
	}
	if len(hits) != 0 {
		t.Errorf("got %d hits, want 0", len(hits))
	}
}

func TestSearchNoBackendsNoLessons(t *testing.T) {
	repo := NewRepository(&mockProvider{}, nil, nil, nil)

	hits, err := repo.Search(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("got %d hits from an empty corpus, want 0", len(hits))
	}
}

func TestSearchNewtonScenario(t *testing.T) {
	repo := NewRepository(&mockProvider{}, nil, nil, nil)
	ctx := context.Background()

	if _, err := repo.Add(ctx, "Newton's Second Law", "F=ma", "Physics", "", ""); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	hits, err := repo.Search(ctx, "force mass acceleration", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Topic != "Newton's Second Law" {
		t.Errorf("Topic = %q, want Newton's Second Law", hits[0].Topic)
	}
	if math.Abs(hits[0].Similarity-1.0) > 0.01 {
		t.Errorf("Similarity = %v, want close to 1.0", hits[0].Similarity)
	}
}
