// Package supabase adapts the hosted Supabase project (PostgREST tables
// plus the match_lessons procedure) to the knowledge.LessonStore
// boundary. Lesson rows go through the anon-key client; embedding rows
// are written with the service-role client because the embeddings table
// is not exposed to end users.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	supa "github.com/supabase-community/supabase-go"

	"github.com/coachai/coachai/internal/knowledge"
	"github.com/coachai/coachai/internal/log"
)

const (
	lessonsTable    = "lessons"
	embeddingsTable = "embeddings"
	matchProcedure  = "match_lessons"
)

// Client implements knowledge.LessonStore against a Supabase project.
type Client struct {
	rest   *supa.Client // anon key: lesson rows, match RPC
	admin  *supa.Client // service role: embedding rows
	logger *slog.Logger
}

// New creates a Supabase-backed lesson store. At least one key is
// required; with only one the same client serves both roles.
func New(url, anonKey, serviceKey string, logger *slog.Logger) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	if anonKey == "" && serviceKey == "" {
		return nil, fmt.Errorf("supabase key is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	restKey := anonKey
	if restKey == "" {
		restKey = serviceKey
	}

	rest, err := supa.NewClient(url, restKey, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}

	admin := rest
	if serviceKey != "" && serviceKey != restKey {
		admin, err = supa.NewClient(url, serviceKey, &supa.ClientOptions{})
		if err != nil {
			return nil, fmt.Errorf("create supabase service client: %w", err)
		}
	}

	return &Client{rest: rest, admin: admin, logger: logger}, nil
}

// lessonRecord is the lessons table row shape. Title mirrors Topic on
// insert; the table keeps both columns and older rows may have only a
// title.
type lessonRecord struct {
	ID         string `json:"id,omitempty"`
	OwnerID    string `json:"owner_id,omitempty"`
	Title      string `json:"title"`
	Topic      string `json:"topic"`
	Subject    string `json:"subject,omitempty"`
	Level      string `json:"level,omitempty"`
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
}

func newLessonRecord(lesson knowledge.Lesson) lessonRecord {
	visibility := lesson.Visibility
	if visibility == "" {
		visibility = knowledge.VisibilityPrivate
	}
	return lessonRecord{
		ID:         lesson.ID,
		OwnerID:    lesson.OwnerID,
		Title:      lesson.Topic,
		Topic:      lesson.Topic,
		Subject:    lesson.Subject,
		Level:      lesson.Level,
		Content:    lesson.Content,
		Visibility: visibility,
	}
}

func (r lessonRecord) lesson() knowledge.Lesson {
	topic := r.Topic
	if topic == "" {
		topic = r.Title
	}
	return knowledge.Lesson{
		ID:         r.ID,
		Topic:      topic,
		Content:    r.Content,
		Subject:    r.Subject,
		Level:      r.Level,
		OwnerID:    r.OwnerID,
		Visibility: r.Visibility,
	}
}

// InsertLesson creates a lesson row and returns it with the id the
// database assigned.
func (c *Client) InsertLesson(ctx context.Context, lesson knowledge.Lesson) (knowledge.Lesson, error) {
	rec := newLessonRecord(lesson)
	rec.ID = "" // always let the database assign ids

	data, _, err := c.rest.From(lessonsTable).
		Insert(rec, false, "", "representation", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return knowledge.Lesson{}, fmt.Errorf("insert lesson: %w", err)
	}

	var rows []lessonRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return knowledge.Lesson{}, fmt.Errorf("parse insert lesson response: %w", err)
	}
	if len(rows) == 0 {
		return knowledge.Lesson{}, fmt.Errorf("insert lesson: empty response")
	}

	c.logger.Debug("lesson inserted", "lesson_id", rows[0].ID, "topic", rows[0].Topic)
	return rows[0].lesson(), nil
}

// GetLesson fetches a lesson by id. Returns nil without error when the
// row does not exist.
func (c *Client) GetLesson(ctx context.Context, id string) (*knowledge.Lesson, error) {
	data, _, err := c.rest.From(lessonsTable).
		Select("*", "", false).
		Eq("id", id).
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get lesson %s: %w", id, err)
	}

	var rows []lessonRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse lesson %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	lesson := rows[0].lesson()
	return &lesson, nil
}

// ListLessons returns up to limit lessons.
func (c *Client) ListLessons(ctx context.Context, limit int) ([]knowledge.Lesson, error) {
	data, _, err := c.rest.From(lessonsTable).
		Select("*", "", false).
		Limit(limit, "").
		ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	var rows []lessonRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse lessons: %w", err)
	}

	lessons := make([]knowledge.Lesson, len(rows))
	for i, row := range rows {
		lessons[i] = row.lesson()
	}
	return lessons, nil
}

// DeleteLesson removes a lesson row by id.
func (c *Client) DeleteLesson(ctx context.Context, id string) error {
	if _, _, err := c.rest.From(lessonsTable).
		Delete("", "").
		Eq("id", id).
		ExecuteWithContext(ctx); err != nil {
		return fmt.Errorf("delete lesson %s: %w", id, err)
	}
	return nil
}

// matchRow is one row from the match_lessons procedure.
type matchRow struct {
	lessonRecord
	Distance float64 `json:"distance"`
}

// MatchLessons invokes the match_lessons procedure with the query
// vector, returning up to matchCount rows ordered by distance.
func (c *Client) MatchLessons(ctx context.Context, vec []float32, matchCount int) ([]knowledge.RemoteHit, error) {
	// The RPC helper has no context variant, so honor cancellation
	// before the call at least.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := map[string]any{
		"query_embedding": Literal(vec),
		"match_count":     matchCount,
	}

	c.rest.Postgrest.ClientError = nil
	raw := c.rest.Rpc(matchProcedure, "", params)
	if err := c.rest.Postgrest.ClientError; err != nil {
		return nil, fmt.Errorf("rpc %s: %w", matchProcedure, err)
	}
	if raw == "" {
		return nil, nil
	}

	var rows []matchRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", matchProcedure, err)
	}

	hits := make([]knowledge.RemoteHit, len(rows))
	for i, row := range rows {
		hits[i] = knowledge.RemoteHit{Lesson: row.lesson(), Distance: row.Distance}
	}
	return hits, nil
}

// embeddingRecord is the embeddings table row shape. The vector crosses
// PostgREST as its bracketed text literal.
type embeddingRecord struct {
	ID          string            `json:"id,omitempty"`
	SourceTable string            `json:"source_table"`
	SourceID    string            `json:"source_id"`
	Embedding   string            `json:"embedding"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// InsertEmbedding stores an embedding row, returning the assigned id.
// This is the fallback write path when the direct index is unreachable.
func (c *Client) InsertEmbedding(ctx context.Context, sourceTable, sourceID string, vec []float32, metadata map[string]string) (string, error) {
	rec := embeddingRecord{
		SourceTable: sourceTable,
		SourceID:    sourceID,
		Embedding:   Literal(vec),
		Metadata:    metadata,
	}

	data, _, err := c.admin.From(embeddingsTable).
		Insert(rec, false, "", "representation", "").
		ExecuteWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("insert embedding for %s/%s: %w", sourceTable, sourceID, err)
	}

	var rows []embeddingRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("parse insert embedding response: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("insert embedding for %s/%s: empty response", sourceTable, sourceID)
	}
	return rows[0].ID, nil
}

// DeleteEmbeddingsBySource removes all embedding rows for one source
// entity.
func (c *Client) DeleteEmbeddingsBySource(ctx context.Context, sourceTable, sourceID string) error {
	data, _, err := c.admin.From(embeddingsTable).
		Delete("representation", "").
		Eq("source_table", sourceTable).
		Eq("source_id", sourceID).
		ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("delete embeddings for %s/%s: %w", sourceTable, sourceID, err)
	}

	var rows []embeddingRecord
	if err := json.Unmarshal(data, &rows); err == nil {
		c.logger.Debug("embeddings deleted",
			"source_table", sourceTable,
			"source_id", sourceID,
			"count", len(rows))
	}
	return nil
}

var _ knowledge.LessonStore = (*Client)(nil)
