package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Snapshot is one exported frame's metadata; the pixels live in storage.
type Snapshot struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	FaceCount       int       `json:"face_count"`
	DominantEmotion string    `json:"dominant_emotion"`
	AvgConfidence   float64   `json:"avg_confidence"`
	TakenAt         time.Time `json:"taken_at"`
}

type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) Create(ctx context.Context, s *Snapshot) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.TakenAt.IsZero() {
		s.TakenAt = time.Now()
	}

	query := `
		INSERT INTO snapshots (id, filename, face_count, dominant_emotion, avg_confidence, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.conn.ExecContext(ctx, query,
		s.ID, s.Filename, s.FaceCount, s.DominantEmotion, s.AvgConfidence, s.TakenAt)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) GetByID(ctx context.Context, id string) (*Snapshot, error) {
	query := `
		SELECT id, filename, face_count, dominant_emotion, avg_confidence, taken_at
		FROM snapshots
		WHERE id = $1`

	s := &Snapshot{}
	err := r.db.conn.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Filename, &s.FaceCount, &s.DominantEmotion, &s.AvgConfidence, &s.TakenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return s, nil
}

func (r *SnapshotRepo) List(ctx context.Context, limit int) ([]*Snapshot, error) {
	query := `
		SELECT id, filename, face_count, dominant_emotion, avg_confidence, taken_at
		FROM snapshots
		ORDER BY taken_at DESC
		LIMIT $1`

	rows, err := r.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		s := &Snapshot{}
		if err := rows.Scan(&s.ID, &s.Filename, &s.FaceCount, &s.DominantEmotion, &s.AvgConfidence, &s.TakenAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

func (r *SnapshotRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.conn.ExecContext(ctx, `DELETE FROM snapshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
