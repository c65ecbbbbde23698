// Package store is the SQLite-backed storage for clients and their insights.
// The one-insight-per-client invariant is enforced by a UNIQUE constraint on
// client_insights.client_id, and insights reference clients through a foreign
// key, so both hold even when two pipeline runs race.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"sales-insights-go/internal/types"
)

var (
	ErrClientNotFound   = errors.New("client not found")
	ErrDuplicateInsight = errors.New("insight already exists for client")
)

const createClientsTableSQL = `
CREATE TABLE IF NOT EXISTS clients (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT,
	sales_rep TEXT NOT NULL,
	meeting_date TEXT NOT NULL,
	closed INTEGER NOT NULL,
	transcript TEXT NOT NULL,
	created_at_utc TEXT NOT NULL
)`

const createInsightsTableSQL = `
CREATE TABLE IF NOT EXISTS client_insights (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	client_id INTEGER NOT NULL UNIQUE REFERENCES clients(id) ON DELETE CASCADE,
	transcript_word_count INTEGER NOT NULL,
	top_keywords TEXT NOT NULL,
	industry TEXT,
	use_case TEXT NOT NULL,
	primary_pain_points TEXT NOT NULL,
	sentiment TEXT NOT NULL,
	product_familiarity TEXT NOT NULL,
	lead_source TEXT,
	main_goal TEXT,
	engagement_score INTEGER,
	interaction_volume_raw TEXT,
	interaction_volume_level TEXT NOT NULL,
	created_at_utc TEXT NOT NULL
)`

var createIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_clients_meeting_date ON clients(meeting_date)`,
	`CREATE INDEX IF NOT EXISTS idx_clients_sales_rep ON clients(sales_rep)`,
}

const insertClientSQL = `
INSERT INTO clients (
	name,
	email,
	phone,
	sales_rep,
	meeting_date,
	closed,
	transcript,
	created_at_utc
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const insertInsightSQL = `
INSERT INTO client_insights (
	client_id,
	transcript_word_count,
	top_keywords,
	industry,
	use_case,
	primary_pain_points,
	sentiment,
	product_familiarity,
	lead_source,
	main_goal,
	engagement_score,
	interaction_volume_raw,
	interaction_volume_level,
	created_at_utc
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const clientColumns = `c.id, c.name, c.email, c.phone, c.sales_rep, c.meeting_date, c.closed, c.transcript`

const insightColumns = `i.id, i.client_id, i.transcript_word_count, i.top_keywords, i.industry, i.use_case,
	i.primary_pain_points, i.sentiment, i.product_familiarity, i.lead_source, i.main_goal,
	i.engagement_score, i.interaction_volume_raw, i.interaction_volume_level, i.created_at_utc`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Processing is sequential; a single connection avoids SQLITE_BUSY between
	// the pool's own connections.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(createClientsTableSQL); err != nil {
		return fmt.Errorf("create clients table: %w", err)
	}
	if _, err := s.db.Exec(createInsightsTableSQL); err != nil {
		return fmt.Errorf("create client_insights table: %w", err)
	}
	for _, stmt := range createIndexesSQL {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// CreateClient inserts c and returns it with its assigned ID.
func (s *Store) CreateClient(ctx context.Context, c types.Client) (types.Client, error) {
	res, err := s.db.ExecContext(ctx, insertClientSQL,
		c.Name,
		c.Email,
		nullString(c.Phone),
		c.SalesRep,
		c.MeetingDate.UTC().Format(time.RFC3339),
		boolToInt(c.Closed),
		c.Transcript,
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return types.Client{}, fmt.Errorf("insert client: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Client{}, fmt.Errorf("client id: %w", err)
	}
	c.ID = id
	return c, nil
}

// DeleteClient removes a client and, through the cascade, its insight.
func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete client %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClientNotFound
	}
	return nil
}

// FindClientByID returns ErrClientNotFound when no row matches.
func (s *Store) FindClientByID(ctx context.Context, id int64) (types.Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients c WHERE c.id = ?`, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Client{}, ErrClientNotFound
	}
	if err != nil {
		return types.Client{}, fmt.Errorf("find client %d: %w", id, err)
	}
	return c, nil
}

// FindInsightByClientID returns (nil, nil) when the client has no insight.
func (s *Store) FindInsightByClientID(ctx context.Context, clientID int64) (*types.Insight, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+insightColumns+` FROM client_insights i WHERE i.client_id = ?`, clientID)
	ins, err := scanInsight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find insight for client %d: %w", clientID, err)
	}
	return ins, nil
}

// CreateInsight persists ins. It returns ErrDuplicateInsight when the client
// already has one and ErrClientNotFound when the client does not exist.
func (s *Store) CreateInsight(ctx context.Context, ins types.Insight) (types.Insight, error) {
	keywords, err := json.Marshal(nonNilKeywords(ins.TopKeywords))
	if err != nil {
		return types.Insight{}, fmt.Errorf("marshal top keywords: %w", err)
	}
	useCase, err := json.Marshal(nonNil(ins.UseCase))
	if err != nil {
		return types.Insight{}, fmt.Errorf("marshal use case: %w", err)
	}
	pains, err := json.Marshal(nonNil(ins.PrimaryPainPoints))
	if err != nil {
		return types.Insight{}, fmt.Errorf("marshal pain points: %w", err)
	}

	createdAt := s.now().UTC()
	res, err := s.db.ExecContext(ctx, insertInsightSQL,
		ins.ClientID,
		ins.TranscriptWordCount,
		string(keywords),
		nullString(ins.Industry),
		string(useCase),
		string(pains),
		string(ins.Sentiment),
		string(ins.ProductFamiliarity),
		nullString(ins.LeadSource),
		nullString(ins.MainGoal),
		nullInt(ins.EngagementScore),
		nullString(ins.InteractionVolumeRaw),
		string(ins.InteractionVolumeLevel),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		switch {
		case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE constraint failed"):
			return types.Insight{}, fmt.Errorf("client %d: %w", ins.ClientID, ErrDuplicateInsight)
		case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY constraint failed"):
			return types.Insight{}, fmt.Errorf("client %d: %w", ins.ClientID, ErrClientNotFound)
		}
		return types.Insight{}, fmt.Errorf("insert insight: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Insight{}, fmt.Errorf("insight id: %w", err)
	}
	ins.ID = id
	ins.CreatedAt = createdAt
	return ins, nil
}

// ListClientIDsMissingInsight returns pending client IDs in ascending order.
func (s *Store) ListClientIDsMissingInsight(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id
FROM clients c
LEFT JOIN client_insights i ON i.client_id = c.id
WHERE i.id IS NULL
ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("query pending clients: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending client: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending clients: %w", err)
	}
	return ids, nil
}

// ListClientsWithInsights returns every client, ordered by meeting date, with
// its insight when one exists.
func (s *Store) ListClientsWithInsights(ctx context.Context) ([]types.ClientWithInsight, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+clientColumns+`, `+insightColumns+`
FROM clients c
LEFT JOIN client_insights i ON i.client_id = c.id
ORDER BY c.meeting_date, c.id`)
	if err != nil {
		return nil, fmt.Errorf("query clients with insights: %w", err)
	}
	defer rows.Close()

	var out []types.ClientWithInsight
	for rows.Next() {
		var (
			c   clientRow
			ins nullableInsightRow
		)
		dest := append(c.dest(), ins.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan client with insight: %w", err)
		}
		client, err := c.toClient()
		if err != nil {
			return nil, err
		}
		insight, err := ins.toInsight()
		if err != nil {
			return nil, err
		}
		out = append(out, types.ClientWithInsight{Client: client, Insight: insight})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients with insights: %w", err)
	}
	return out, nil
}

func isConstraint(err error, code int, message string) bool {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == code {
		return true
	}
	return strings.Contains(err.Error(), message)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilKeywords(v []types.KeywordCount) []types.KeywordCount {
	if v == nil {
		return []types.KeywordCount{}
	}
	return v
}
