package settlement

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/damas-online/internal/domain"
)

// Recorder persists settled match results.
type Recorder interface {
	SaveResult(ctx context.Context, r *domain.MatchResult) error
}

// Schema creates the results table used by PostgresRecorder.
const Schema = `CREATE TABLE IF NOT EXISTS damas_matches (
	match_id          TEXT PRIMARY KEY,
	winner            TEXT NOT NULL,
	result_method     TEXT NOT NULL,
	move_number       INTEGER NOT NULL,
	white_pieces      INTEGER NOT NULL,
	black_pieces      INTEGER NOT NULL,
	white_kings       INTEGER NOT NULL,
	black_kings       INTEGER NOT NULL,
	captured_by_white INTEGER NOT NULL,
	captured_by_black INTEGER NOT NULL,
	moves             JSONB NOT NULL,
	record            TEXT NOT NULL,
	ended_at          TIMESTAMPTZ NOT NULL
)`

type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(databaseURL string) (*PostgresRecorder, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresRecorder{db: db}, nil
}

func (r *PostgresRecorder) Close() error {
	if r == nil || r.db == nil { return nil }
	return r.db.Close()
}

// EnsureSchema creates the results table when missing.
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// SaveResult upserts by match id so a retried settlement overwrites its own row.
func (r *PostgresRecorder) SaveResult(ctx context.Context, res *domain.MatchResult) error {
	if r == nil || r.db == nil || res == nil {
		return nil
	}
	moves := res.Moves
	if moves == nil { moves = []string{} }
	movesRaw, err := json.Marshal(moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}

	const q = `INSERT INTO damas_matches (
		match_id, winner, result_method, move_number,
		white_pieces, black_pieces, white_kings, black_kings,
		captured_by_white, captured_by_black, moves, record, ended_at
	  ) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
	  ) ON CONFLICT (match_id) DO UPDATE SET
		winner=EXCLUDED.winner,
		result_method=EXCLUDED.result_method,
		move_number=EXCLUDED.move_number,
		white_pieces=EXCLUDED.white_pieces,
		black_pieces=EXCLUDED.black_pieces,
		white_kings=EXCLUDED.white_kings,
		black_kings=EXCLUDED.black_kings,
		captured_by_white=EXCLUDED.captured_by_white,
		captured_by_black=EXCLUDED.captured_by_black,
		moves=EXCLUDED.moves,
		record=EXCLUDED.record,
		ended_at=EXCLUDED.ended_at`

	_, err = r.db.ExecContext(ctx, q,
		res.MatchID, res.Winner, res.Method, res.MoveNumber,
		res.WhitePieces, res.BlackPieces, res.WhiteKings, res.BlackKings,
		res.CapturedByWhite, res.CapturedByBlack, string(movesRaw), res.Record, res.EndedAt,
	)
	return err
}

// MemoryRecorder keeps results in process when no database is configured.
type MemoryRecorder struct {
	mu      sync.RWMutex
	results map[string]*domain.MatchResult
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{results: make(map[string]*domain.MatchResult)}
}

func (m *MemoryRecorder) SaveResult(_ context.Context, res *domain.MatchResult) error {
	if res == nil {
		return nil
	}
	cp := *res
	cp.Moves = append([]string(nil), res.Moves...)
	m.mu.Lock()
	m.results[strings.TrimSpace(res.MatchID)] = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryRecorder) Get(matchID string) (*domain.MatchResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[strings.TrimSpace(matchID)]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// Recent lists results by EndedAt, newest first.
func (m *MemoryRecorder) Recent(limit int) []*domain.MatchResult {
	m.mu.RLock()
	items := make([]*domain.MatchResult, 0, len(m.results))
	for _, r := range m.results {
		cp := *r
		items = append(items, &cp)
	}
	m.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].MatchID < items[j].MatchID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
