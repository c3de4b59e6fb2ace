package knowledge

import (
	"context"
	"fmt"
	"sort"

	"github.com/coachai/coachai/internal/embedding"
)

// Searcher is the read side of the repository, consumed by the
// reranker and the generation layer.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Hit, error)
}

// Search finds the lessons most relevant to query, trying each backend
// tier in priority order. The result is ordered by similarity
// descending, at most topK long.
//
// Tier failures — including the tier's own embedding call — are
// absorbed as "no results, try the next tier", so a degraded deployment
// answers from the in-memory tier instead of failing outright. An empty
// slice is a valid outcome, not an error.
func (r *Repository) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	// Tiers 1 and 2 rank against the same query vector, so it is
	// embedded once, lazily. A provider failure still only disables the
	// tier that observed it.
	var queryVec []float32
	embedQuery := func() ([]float32, error) {
		if queryVec != nil {
			return queryVec, nil
		}
		vectors, err := r.provider.Embed(ctx, []string{query}, embedding.PurposeQuery)
		if err != nil {
			return nil, err
		}
		queryVec = vectors[0]
		return queryVec, nil
	}

	if r.index != nil {
		hits, err := r.searchDirect(ctx, embedQuery, topK)
		if err != nil {
			r.logger.Warn("direct vector search failed, falling through", "error", err)
		} else if len(hits) > 0 {
			return hits, nil
		}
	}

	if r.store != nil {
		hits, err := r.searchRemote(ctx, embedQuery, topK)
		if err != nil {
			r.logger.Warn("remote match search failed, falling through", "error", err)
		} else if len(hits) > 0 {
			return hits, nil
		}
	}

	return r.searchCache(ctx, query, topK)
}

// searchDirect is tier 1: nearest-neighbor search on the vector index,
// matches resolved to full lessons by id.
func (r *Repository) searchDirect(ctx context.Context, embedQuery func() ([]float32, error), topK int) ([]Hit, error) {
	vec, err := embedQuery()
	if err != nil {
		return nil, err
	}

	matches, err := r.index.Search(ctx, vec, SourceTableLessons, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		lesson := r.resolveLesson(ctx, m.SourceID)
		if lesson == nil {
			r.logger.Debug("dropping match without resolvable lesson", "source_id", m.SourceID)
			continue
		}
		hits = append(hits, Hit{
			Lesson:     *lesson,
			Distance:   m.Distance,
			Similarity: SimilarityFromDistance(m.Distance),
		})
	}
	return hits, nil
}

// resolveLesson fetches the lesson behind a match, preferring the
// durable store and falling back to the cache snapshot.
func (r *Repository) resolveLesson(ctx context.Context, id string) *Lesson {
	if r.store != nil {
		lesson, err := r.store.GetLesson(ctx, id)
		if err != nil {
			r.logger.Debug("lesson lookup failed, trying cache", "lesson_id", id, "error", err)
		} else if lesson != nil {
			return lesson
		}
	}

	if lesson, ok := r.cache.Get(id); ok {
		return lesson
	}
	return nil
}

// searchRemote is tier 2: the ranked-match procedure on the remote
// backend, which returns full lesson rows with distances.
func (r *Repository) searchRemote(ctx context.Context, embedQuery func() ([]float32, error), topK int) ([]Hit, error) {
	vec, err := embedQuery()
	if err != nil {
		return nil, err
	}

	rows, err := r.store.MatchLessons(ctx, vec, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, Hit{
			Lesson:     row.Lesson,
			Distance:   row.Distance,
			Similarity: SimilarityFromDistance(row.Distance),
		})
	}
	return hits, nil
}

// searchCache is tier 3: brute-force cosine similarity over the cached
// lessons, computed client-side. The last line of defense — it has no
// further fallback, so its own failures degrade to an empty result.
func (r *Repository) searchCache(ctx context.Context, query string, topK int) ([]Hit, error) {
	if r.cache.Len() == 0 {
		if err := r.Load(ctx); err != nil {
			r.logger.Warn("refreshing lesson cache failed", "error", err)
		}
	}

	lessons := r.cache.All()
	if len(lessons) == 0 {
		return nil, nil
	}

	texts := make([]string, len(lessons))
	for i, lesson := range lessons {
		texts[i] = fmt.Sprintf("%s: %s", lesson.Topic, lesson.Content)
	}

	docVecs, err := r.provider.Embed(ctx, texts, embedding.PurposeDocument)
	if err != nil {
		r.logger.Warn("embedding cached lessons failed", "error", err)
		return nil, nil
	}
	queryVecs, err := r.provider.Embed(ctx, []string{query}, embedding.PurposeQuery)
	if err != nil {
		r.logger.Warn("embedding query failed", "error", err)
		return nil, nil
	}

	sims := make([]float64, len(lessons))
	for i := range lessons {
		sims[i] = CosineSimilarity(docVecs[i], queryVecs[0])
	}

	// Stable sort: equal similarities keep original cache order.
	order := make([]int, len(lessons))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sims[order[a]] > sims[order[b]]
	})

	if topK > len(order) {
		topK = len(order)
	}

	hits := make([]Hit, 0, topK)
	for _, i := range order[:topK] {
		hits = append(hits, Hit{
			Lesson:     lessons[i],
			Similarity: sims[i],
		})
	}
	return hits, nil
}
