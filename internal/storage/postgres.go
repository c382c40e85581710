package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/visitord/internal/config"
	"github.com/your-org/visitord/internal/models"
)

// EmbeddingDim is the vector width of the visitors.embedding column
// (vector(512) in schema.sql). Embedders must produce vectors of this width.
const EmbeddingDim = 512

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Visitors ---

// FindSimilarVisitor returns the stored visitor whose embedding is closest to
// the given one, provided cosine similarity clears the threshold. pgvector's
// <=> operator is cosine distance; similarity = 1 - distance.
func (s *PostgresStore) FindSimilarVisitor(ctx context.Context, embedding []float32, threshold float64) (uuid.UUID, float32, bool, error) {
	vec := pgvector.NewVector(embedding)

	var id uuid.UUID
	var similarity float32
	err := s.pool.QueryRow(ctx,
		`SELECT id, 1 - (embedding <=> $1) AS similarity
		 FROM visitors
		 WHERE 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT 1`,
		vec, threshold,
	).Scan(&id, &similarity)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, 0, false, nil
		}
		return uuid.Nil, 0, false, fmt.Errorf("find similar visitor: %w", err)
	}
	return id, similarity, true, nil
}

// RegisterVisitor stores the embedding under a fresh identity and returns it.
func (s *PostgresStore) RegisterVisitor(ctx context.Context, embedding []float32) (uuid.UUID, error) {
	id := uuid.New()
	vec := pgvector.NewVector(embedding)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO visitors (id, embedding, first_seen, last_seen) VALUES ($1, $2, now(), now())`,
		id, vec)
	if err != nil {
		return uuid.Nil, fmt.Errorf("register visitor: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetVisitor(ctx context.Context, id uuid.UUID) (*models.Visitor, error) {
	v := &models.Visitor{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, first_seen, last_seen, visit_count FROM visitors WHERE id = $1`, id,
	).Scan(&v.ID, &v.FirstSeen, &v.LastSeen, &v.VisitCount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get visitor: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListVisitors(ctx context.Context, limit, offset int) ([]models.Visitor, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM visitors`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count visitors: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, first_seen, last_seen, visit_count
		 FROM visitors ORDER BY last_seen DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	var visitors []models.Visitor
	for rows.Next() {
		var v models.Visitor
		if err := rows.Scan(&v.ID, &v.FirstSeen, &v.LastSeen, &v.VisitCount); err != nil {
			return nil, 0, fmt.Errorf("scan visitor: %w", err)
		}
		visitors = append(visitors, v)
	}
	return visitors, total, nil
}

func (s *PostgresStore) DeleteVisitor(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM visitors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete visitor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("visitor not found")
	}
	return nil
}

// --- Visit events ---

// AppendVisitEvent records one entry/exit event. Entry events also bump the
// visitor's last_seen and visit counter.
func (s *PostgresStore) AppendVisitEvent(ctx context.Context, ev *models.VisitEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.CreatedAt = time.Now()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO visit_events (id, visitor_id, stream_id, kind, timestamp, snapshot_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.VisitorID, ev.StreamID, ev.Kind, ev.Timestamp, ev.SnapshotKey, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append visit event: %w", err)
	}

	if ev.Kind == models.EventKindEntry {
		_, err = s.pool.Exec(ctx,
			`UPDATE visitors SET last_seen = $1, visit_count = visit_count + 1 WHERE id = $2`,
			ev.Timestamp, ev.VisitorID)
		if err != nil {
			return fmt.Errorf("update visitor on entry: %w", err)
		}
	}
	return nil
}

// VisitEventFilter narrows QueryVisitEvents.
type VisitEventFilter struct {
	StreamID  *uuid.UUID
	VisitorID *uuid.UUID
	Kind      *models.EventKind
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

func (s *PostgresStore) QueryVisitEvents(ctx context.Context, f VisitEventFilter) ([]models.VisitEvent, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if f.StreamID != nil {
		where += fmt.Sprintf(" AND stream_id = $%d", argIdx)
		args = append(args, *f.StreamID)
		argIdx++
	}
	if f.VisitorID != nil {
		where += fmt.Sprintf(" AND visitor_id = $%d", argIdx)
		args = append(args, *f.VisitorID)
		argIdx++
	}
	if f.Kind != nil {
		where += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, *f.Kind)
		argIdx++
	}
	if f.From != nil {
		where += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *f.From)
		argIdx++
	}
	if f.To != nil {
		where += fmt.Sprintf(" AND timestamp <= $%d", argIdx)
		args = append(args, *f.To)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM visit_events "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count visit events: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, visitor_id, stream_id, kind, timestamp, snapshot_key, created_at
		 FROM visit_events %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query visit events: %w", err)
	}
	defer rows.Close()

	var events []models.VisitEvent
	for rows.Next() {
		var ev models.VisitEvent
		if err := rows.Scan(&ev.ID, &ev.VisitorID, &ev.StreamID, &ev.Kind,
			&ev.Timestamp, &ev.SnapshotKey, &ev.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan visit event: %w", err)
		}
		events = append(events, ev)
	}
	return events, total, nil
}

// GetVisitEvent returns a single event by ID.
func (s *PostgresStore) GetVisitEvent(ctx context.Context, id uuid.UUID) (*models.VisitEvent, error) {
	var ev models.VisitEvent
	err := s.pool.QueryRow(ctx,
		`SELECT id, visitor_id, stream_id, kind, timestamp, snapshot_key, created_at
		 FROM visit_events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.VisitorID, &ev.StreamID, &ev.Kind, &ev.Timestamp, &ev.SnapshotKey, &ev.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get visit event: %w", err)
	}
	return &ev, nil
}

// --- Streams ---

func (s *PostgresStore) CreateStream(ctx context.Context, st *models.Stream) error {
	st.ID = uuid.New()
	st.Status = models.StreamStatusStopped
	if st.Config == nil {
		st.Config = json.RawMessage("{}")
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO streams (id, url, stream_type, fps, status, config)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		st.ID, st.URL, st.StreamType, st.FPS, st.Status, st.Config,
	).Scan(&st.CreatedAt, &st.UpdatedAt)
}

func (s *PostgresStore) GetStream(ctx context.Context, id uuid.UUID) (*models.Stream, error) {
	st := &models.Stream{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, url, stream_type, fps, status, config, error_message, created_at, updated_at
		 FROM streams WHERE id = $1`, id,
	).Scan(&st.ID, &st.URL, &st.StreamType, &st.FPS, &st.Status,
		&st.Config, &st.ErrorMessage, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get stream: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) ListStreams(ctx context.Context) ([]models.Stream, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, stream_type, fps, status, config, error_message, created_at, updated_at
		 FROM streams ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	defer rows.Close()

	var streams []models.Stream
	for rows.Next() {
		var st models.Stream
		if err := rows.Scan(&st.ID, &st.URL, &st.StreamType, &st.FPS, &st.Status,
			&st.Config, &st.ErrorMessage, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		streams = append(streams, st)
	}
	return streams, nil
}

func (s *PostgresStore) UpdateStreamStatus(ctx context.Context, id uuid.UUID, status models.StreamStatus, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE streams SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		status, errMsg, id)
	return err
}

func (s *PostgresStore) DeleteStream(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM streams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stream not found")
	}
	return nil
}
