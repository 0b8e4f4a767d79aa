package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Generation statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
	StatusInvalid = "invalid"
)

const maxErrorLen = 1024

// Generation is one recorded pipeline run. Prompts and templates are not stored.
type Generation struct {
	ID             string    `db:"id"`
	Mode           string    `db:"mode"`
	DetailLevel    string    `db:"detail_level"`
	Variables      []string  `db:"-"`
	VariablesJSON  string    `db:"variables"`
	DummyData      bool      `db:"dummy_data"`
	Status         string    `db:"status"`
	DurationMS     int64     `db:"duration_ms"`
	TemplateLength int       `db:"template_length"`
	Error          string    `db:"error"`
	CreatedAt      time.Time `db:"created_at"`
}

// GenerationStore is the sqlx-backed store for generation history.
type GenerationStore struct {
	db *sqlx.DB
}

// NewGenerationStore creates a new GenerationStore.
func NewGenerationStore(db *sqlx.DB) *GenerationStore {
	return &GenerationStore{db: db}
}

// q rebinds ? placeholders to the driver's native format.
func (s *GenerationStore) q(query string) string { return s.db.Rebind(query) }

// Record inserts g, assigning an ID and timestamp when unset.
func (s *GenerationStore) Record(ctx context.Context, g *Generation) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	if g.Variables == nil {
		g.Variables = []string{}
	}
	vars, err := json.Marshal(g.Variables)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}
	g.VariablesJSON = string(vars)
	g.Error = truncateUTF8(g.Error, maxErrorLen)

	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO generations (id, mode, detail_level, variables, dummy_data, status, duration_ms, template_length, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), g.ID, g.Mode, g.DetailLevel, g.VariablesJSON, g.DummyData, g.Status, g.DurationMS, g.TemplateLength, g.Error, g.CreatedAt)
	return err
}

// Get returns the generation with id, or ErrNotFound.
func (s *GenerationStore) Get(ctx context.Context, id string) (*Generation, error) {
	var g Generation
	err := s.db.GetContext(ctx, &g, s.q(`
		SELECT id, mode, detail_level, variables, dummy_data, status, duration_ms, template_length, error, created_at
		FROM generations WHERE id = ?
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := g.decodeVariables(); err != nil {
		return nil, err
	}
	return &g, nil
}

// ListRecent returns up to limit generations, newest first.
func (s *GenerationStore) ListRecent(ctx context.Context, limit int) ([]*Generation, error) {
	var gens []*Generation
	err := s.db.SelectContext(ctx, &gens, s.q(`
		SELECT id, mode, detail_level, variables, dummy_data, status, duration_ms, template_length, error, created_at
		FROM generations
		ORDER BY created_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	for _, g := range gens {
		if err := g.decodeVariables(); err != nil {
			return nil, err
		}
	}
	return gens, nil
}

// CountByStatus returns the number of recorded generations per status.
func (s *GenerationStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int64  `db:"n"`
	}
	err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM generations GROUP BY status`)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (g *Generation) decodeVariables() error {
	if g.VariablesJSON == "" {
		g.Variables = []string{}
		return nil
	}
	if err := json.Unmarshal([]byte(g.VariablesJSON), &g.Variables); err != nil {
		return fmt.Errorf("decode variables of %s: %w", g.ID, err)
	}
	return nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a character.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
