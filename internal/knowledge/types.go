package knowledge

import "context"

// Source table discriminators for embedding records. An embedding may
// belong to any of these entity kinds; only lessons are searched today.
const (
	SourceTableLessons            = "lessons"
	SourceTableUserQueries        = "user_queries"
	SourceTableGeneratedQuestions = "generated_questions"
)

// Lesson visibility values.
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

// Lesson is a stored educational content unit.
type Lesson struct {
	ID         string // Assigned by the store on creation
	Topic      string // Short display name, not unique
	Content    string // The text retrieved and shown to the model
	Subject    string // Category, e.g. "Physics"
	Level      string // Difficulty label, e.g. "High School"
	OwnerID    string // Creating user; empty = globally visible
	Visibility string // "private" or "public"
}

// Hit is a transient search result: a lesson plus its relevance to the
// query. Distance is the raw backend-reported cosine distance when a
// backend produced one (zero otherwise); Similarity is always populated
// and is the authoritative ranking score, higher = closer.
type Hit struct {
	Lesson
	Distance   float64
	Similarity float64
}

// Match is one raw nearest-neighbor hit from a vector index, before the
// referenced lesson is resolved.
type Match struct {
	SourceID string
	Metadata map[string]string
	Distance float64
}

// RemoteHit is one row from the remote ranked-match procedure: full
// lesson fields plus the reported distance.
type RemoteHit struct {
	Lesson
	Distance float64
}

// VectorIndex is the direct vector-indexed store boundary.
// Implemented by the pgvector adapter.
type VectorIndex interface {
	// Insert stores one embedding for a source entity, returning the
	// assigned embedding id.
	Insert(ctx context.Context, sourceTable, sourceID string, vec []float32, metadata map[string]string) (string, error)

	// DeleteBySource removes all embeddings for a source entity.
	DeleteBySource(ctx context.Context, sourceTable, sourceID string) (bool, error)

	// Search returns up to topK matches within one source table,
	// ordered by distance ascending.
	Search(ctx context.Context, vec []float32, sourceTable string, topK int) ([]Match, error)
}

// LessonStore is the remote table/RPC boundary: generic row operations
// on the lessons and embeddings tables plus the ranked-match procedure.
// Implemented by the Supabase adapter.
type LessonStore interface {
	// InsertLesson creates a lesson and returns it with its assigned id.
	InsertLesson(ctx context.Context, lesson Lesson) (Lesson, error)

	// GetLesson fetches a single lesson by id; nil when absent.
	GetLesson(ctx context.Context, id string) (*Lesson, error)

	// ListLessons returns up to limit lessons.
	ListLessons(ctx context.Context, limit int) ([]Lesson, error)

	// DeleteLesson removes a lesson row by id.
	DeleteLesson(ctx context.Context, id string) error

	// MatchLessons invokes the remote ranked-match procedure with the
	// query vector, returning up to matchCount rows by distance ascending.
	MatchLessons(ctx context.Context, vec []float32, matchCount int) ([]RemoteHit, error)

	// InsertEmbedding stores an embedding row remotely. Fallback path
	// when the direct vector index is not reachable.
	InsertEmbedding(ctx context.Context, sourceTable, sourceID string, vec []float32, metadata map[string]string) (string, error)

	// DeleteEmbeddingsBySource removes embedding rows remotely.
	DeleteEmbeddingsBySource(ctx context.Context, sourceTable, sourceID string) error
}
