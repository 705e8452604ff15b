package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lumi/internal/persona"
)

// Store persists memories and their embeddings. It shares the relational
// store's database so a single file holds the whole persona.
type Store struct {
	db        *sql.DB
	personaID string
	embedder  Embedder // nil = keyword-only mode
	index     SimilarityIndex
	logger    zerolog.Logger
}

// NewStore creates the memory store on an already-open database, applying
// its own schema. embedder may be nil; retrieval then uses keyword matching
// only.
func NewStore(db *sql.DB, personaID string, embedder Embedder) (*Store, error) {
	s := &Store{
		db:        db,
		personaID: personaID,
		embedder:  embedder,
		logger:    log.With().Str("comp", "memory").Logger(),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("memory migrate: %w", err)
	}
	if embedder != nil {
		idx, err := newSimilarityIndex(db, personaID)
		if err != nil {
			return nil, fmt.Errorf("similarity index: %w", err)
		}
		s.index = idx
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS memories (
		id                  TEXT PRIMARY KEY,
		persona_id          TEXT NOT NULL,
		kind                TEXT NOT NULL,
		content             TEXT NOT NULL,
		importance          INTEGER NOT NULL,
		emotional_intensity INTEGER NOT NULL DEFAULT 1,
		access_count        INTEGER NOT NULL DEFAULT 0,
		last_accessed_at    TEXT,
		created_at          TEXT NOT NULL,
		embedding           BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_memories_persona ON memories(persona_id, created_at DESC);
	`)
	return err
}

// Remember stores one memory, embedding it when an embedder is configured.
// A failed embedding degrades to keyword-only for that memory rather than
// failing the write.
func (s *Store) Remember(ctx context.Context, m Memory) (string, error) {
	if strings.TrimSpace(m.Content) == "" {
		return "", fmt.Errorf("empty memory content")
	}
	if m.ID == "" {
		m.ID = newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Kind == "" {
		m.Kind = KindConversation
	}
	m.Importance = persona.ClampImportance(m.Importance)
	m.EmotionalIntensity = persona.ClampImportance(m.EmotionalIntensity)

	var blob []byte
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, m.Content)
		if err != nil {
			s.logger.Warn().Err(err).Str("id", m.ID).Msg("embedding failed, storing without vector")
		} else {
			blob = encodeVector(vec)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (id, persona_id, kind, content, importance, emotional_intensity, access_count, last_accessed_at, created_at, embedding)
		VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)`,
		m.ID, s.personaID, string(m.Kind), m.Content, m.Importance, m.EmotionalIntensity,
		m.CreatedAt.UTC().Format(time.RFC3339), blob)
	if err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}

	if s.index != nil && blob != nil {
		if err := s.index.Add(ctx, m.ID, decodeVector(blob)); err != nil {
			s.logger.Warn().Err(err).Str("id", m.ID).Msg("index add failed")
		}
	}
	return m.ID, nil
}

// Get loads one memory by id without touching access bookkeeping.
func (s *Store) Get(ctx context.Context, id string) (Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, content, importance, emotional_intensity, access_count, last_accessed_at, created_at
		FROM memories WHERE id = ? AND persona_id = ?`, id, s.personaID)
	return scanMemory(row)
}

// Count returns the number of stored memories for the persona.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE persona_id = ?`, s.personaID).Scan(&n)
	return n, err
}

// CountSince returns memories created at or after the given instant.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE persona_id = ? AND created_at >= ?`,
		s.personaID, since.UTC().Format(time.RFC3339)).Scan(&n)
	return n, err
}

// touch records one retrieval: bumps access_count and last_accessed_at.
func (s *Store) touch(ctx context.Context, ids []string, now time.Time) {
	for _, id := range ids {
		_, err := s.db.ExecContext(ctx, `
			UPDATE memories SET access_count = access_count + 1, last_accessed_at = ?
			WHERE id = ?`, now.UTC().Format(time.RFC3339), id)
		if err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("access bookkeeping failed")
		}
	}
}

func (s *Store) delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete memory %s: %w", id, err)
		}
		if s.index != nil {
			if err := s.index.Remove(ctx, id); err != nil {
				s.logger.Warn().Err(err).Str("id", id).Msg("index remove failed")
			}
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (Memory, error) {
	var (
		m        Memory
		accessed sql.NullString
		created  string
	)
	err := row.Scan(&m.ID, &m.Kind, &m.Content, &m.Importance, &m.EmotionalIntensity, &m.AccessCount, &accessed, &created)
	if err != nil {
		return m, err
	}
	if accessed.Valid {
		m.LastAccessedAt, _ = time.Parse(time.RFC3339, accessed.String)
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return m, nil
}

// encodeVector packs a float32 vector little-endian, the layout sqlite-vec
// expects for its blob columns.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
