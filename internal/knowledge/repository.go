package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/coachai/coachai/internal/embedding"
)

// ErrStoreUnavailable indicates a backend adapter could not reach its
// store. Inside the retrieval cascade it triggers fallthrough to the
// next tier rather than propagation.
var ErrStoreUnavailable = errors.New("storage backend unavailable")

// loadLimit bounds a wholesale cache refresh.
const loadLimit = 5000

// Repository owns lessons and their embeddings. Both backends are
// optional: a nil VectorIndex disables the direct search tier, a nil
// LessonStore makes the repository purely in-memory.
//
// Repository is safe for concurrent use. There is no cross-call
// coordination: concurrent Adds each run their own compensation
// sequence on failure.
type Repository struct {
	provider embedding.Provider
	index    VectorIndex
	store    LessonStore
	cache    *Cache
	logger   *slog.Logger
}

// NewRepository creates a Repository. provider must be non-nil; index
// and store may each be nil. A nil logger falls back to slog.Default().
func NewRepository(provider embedding.Provider, index VectorIndex, store LessonStore, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}

	return &Repository{
		provider: provider,
		index:    index,
		store:    store,
		cache:    NewCache(),
		logger:   logger,
	}
}

// Load refreshes the lesson cache wholesale from the remote store.
// Without a remote store the cache is the source of truth and Load is a
// no-op. On failure the cache is cleared so stale reads cannot pose as
// fresh ones.
func (r *Repository) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	lessons, err := r.store.ListLessons(ctx, loadLimit)
	if err != nil {
		r.cache.Replace(nil)
		return fmt.Errorf("loading lessons: %w", err)
	}

	r.cache.Replace(lessons)
	r.logger.Debug("lesson cache refreshed", "count", len(lessons))
	return nil
}

// All returns the cached lessons. Call Load first when freshness matters.
func (r *Repository) All() []Lesson {
	return r.cache.All()
}

// Add creates a lesson and its embedding as one logical unit: the
// lesson becomes searchable, or is not created at all.
//
// The lesson row commits first, then the embedding. If embedding
// computation or storage fails, the committed lesson row is deleted
// again (best-effort compensation) and the error is returned — an
// unsearchable lesson must not persist.
func (r *Repository) Add(ctx context.Context, topic, content, subject, level, ownerID string) (*Lesson, error) {
	lesson := Lesson{
		Topic:      topic,
		Content:    content,
		Subject:    subject,
		Level:      level,
		OwnerID:    ownerID,
		Visibility: VisibilityPrivate,
	}

	if r.store == nil {
		// Memory-only: no embedding row to keep consistent. Tier 3
		// embeds cached lessons on demand.
		lesson.ID = uuid.NewString()
		r.cache.Update(func(lessons []Lesson) []Lesson {
			return append(slices.Clone(lessons), lesson)
		})
		return &lesson, nil
	}

	created, err := r.store.InsertLesson(ctx, lesson)
	if err != nil {
		// Nothing committed yet, nothing to clean up.
		return nil, fmt.Errorf("inserting lesson: %w", err)
	}

	var sg saga
	sg.committed("insert lesson", func(ctx context.Context) error {
		return r.store.DeleteLesson(ctx, created.ID)
	})

	vectors, err := r.provider.Embed(ctx, []string{content}, embedding.PurposeDocument)
	if err != nil {
		sg.rollback(ctx, r.logger)
		return nil, fmt.Errorf("embedding lesson %s: %w", created.ID, err)
	}

	metadata := map[string]string{
		"topic":   topic,
		"subject": subject,
	}
	if ownerID != "" {
		metadata["owner_id"] = ownerID
	}

	if err := r.insertEmbedding(ctx, created.ID, vectors[0], metadata); err != nil {
		sg.rollback(ctx, r.logger)
		return nil, fmt.Errorf("storing embedding for lesson %s: %w", created.ID, err)
	}

	// Refresh the read replica so the new lesson is immediately visible
	// to searches. Failure here degrades freshness, not correctness.
	if err := r.Load(ctx); err != nil {
		r.logger.Warn("cache refresh after add failed", "lesson_id", created.ID, "error", err)
	}

	r.logger.Debug("lesson added", "lesson_id", created.ID, "topic", topic)
	return &created, nil
}

// insertEmbedding writes the embedding row, preferring the direct
// vector index and falling back to the remote embeddings table.
func (r *Repository) insertEmbedding(ctx context.Context, lessonID string, vec []float32, metadata map[string]string) error {
	if r.index != nil {
		_, err := r.index.Insert(ctx, SourceTableLessons, lessonID, vec, metadata)
		if err == nil {
			return nil
		}
		r.logger.Warn("direct embedding insert failed, trying remote",
			"lesson_id", lessonID, "error", err)
	}

	if _, err := r.store.InsertEmbedding(ctx, SourceTableLessons, lessonID, vec, metadata); err != nil {
		return fmt.Errorf("remote embedding insert: %w", err)
	}
	return nil
}

// Delete removes a lesson and its embeddings. Failure to remove the
// lesson row is fatal and returned; embedding cleanup is best-effort —
// a dangling embedding only risks a future unresolvable match, which
// the lesson lookup after a hit already tolerates.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if r.store == nil {
		r.cache.Update(func(lessons []Lesson) []Lesson {
			return slices.DeleteFunc(slices.Clone(lessons), func(l Lesson) bool {
				return l.ID == id
			})
		})
		return nil
	}

	if err := r.store.DeleteLesson(ctx, id); err != nil {
		return fmt.Errorf("deleting lesson %s: %w", id, err)
	}

	if err := r.Load(ctx); err != nil {
		r.logger.Warn("cache refresh after delete failed", "lesson_id", id, "error", err)
	}

	r.cleanupEmbeddings(ctx, id)
	return nil
}

func (r *Repository) cleanupEmbeddings(ctx context.Context, lessonID string) {
	if r.index != nil {
		deleted, err := r.index.DeleteBySource(ctx, SourceTableLessons, lessonID)
		if err != nil {
			r.logger.Warn("embedding cleanup failed, dangling embedding may remain",
				"lesson_id", lessonID, "error", err)
		} else if deleted {
			return
		}
		// Nothing in the index: the embedding may live in the remote
		// fallback table instead.
	}

	if err := r.store.DeleteEmbeddingsBySource(ctx, SourceTableLessons, lessonID); err != nil {
		r.logger.Warn("remote embedding cleanup failed, dangling embedding may remain",
			"lesson_id", lessonID, "error", err)
	}
}
