package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/soyeahso/agentloop/internal/embedding"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("store: document not found")

// Document is one entry in the knowledge base.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Source    string    `json:"source,omitempty"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Score     float64   `json:"score,omitempty"` // search results only
}

// KnowledgeStore manages documents with full-text search via SQLite FTS5
// and vector similarity over stored embeddings.
type KnowledgeStore struct {
	db *DB
}

// NewKnowledgeStore creates a knowledge store using the given database.
func NewKnowledgeStore(db *DB) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

// Add inserts a document, or replaces the one with the same ID.
func (k *KnowledgeStore) Add(ctx context.Context, doc Document) (*Document, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, errors.New("store: document content is empty")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	now := time.Now().UTC().Truncate(time.Second)
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := k.db.sql.ExecContext(ctx,
		`INSERT INTO knowledge_documents (id, title, content, source, embedding, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   content = excluded.content,
		   source = excluded.source,
		   embedding = excluded.embedding,
		   updated_at = excluded.updated_at`,
		doc.ID, doc.Title, doc.Content, doc.Source, encodeVector(doc.Embedding),
		now.Format(time.DateTime), now.Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("adding document: %w", err)
	}
	k.db.log.Debug().Str("id", doc.ID).Bool("embedded", len(doc.Embedding) > 0).Msg("document stored")
	return &doc, nil
}

// Get returns a document by ID.
func (k *KnowledgeStore) Get(ctx context.Context, id string) (*Document, error) {
	row := k.db.sql.QueryRowContext(ctx,
		`SELECT id, title, content, source, embedding, created_at, updated_at, 0
		 FROM knowledge_documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// Search finds documents matching the query using FTS5, best match first.
// A limit of 0 defaults to 20.
func (k *KnowledgeStore) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := k.db.sql.QueryContext(ctx,
		`SELECT d.id, d.title, d.content, d.source, d.embedding, d.created_at, d.updated_at, knowledge_fts.rank
		 FROM knowledge_fts
		 JOIN knowledge_documents d ON d.rowid = knowledge_fts.rowid
		 WHERE knowledge_fts MATCH ?
		 ORDER BY knowledge_fts.rank
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	// FTS5 rank is negative; lower is better.
	for i := range docs {
		docs[i].Score = -docs[i].Score
	}
	return docs, nil
}

// Nearest returns the documents whose embeddings are most similar to vec by
// cosine similarity. Documents without an embedding are skipped.
func (k *KnowledgeStore) Nearest(ctx context.Context, vec []float32, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := k.db.sql.QueryContext(ctx,
		`SELECT id, title, content, source, embedding, created_at, updated_at, 0
		 FROM knowledge_documents WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Score = embedding.Cosine(vec, docs[i].Embedding)
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// List returns documents, most recently updated first.
func (k *KnowledgeStore) List(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := k.db.sql.QueryContext(ctx,
		`SELECT id, title, content, source, embedding, created_at, updated_at, 0
		 FROM knowledge_documents ORDER BY updated_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Delete removes a document by ID.
func (k *KnowledgeStore) Delete(ctx context.Context, id string) error {
	res, err := k.db.sql.ExecContext(ctx, `DELETE FROM knowledge_documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored documents.
func (k *KnowledgeStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := k.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// ftsQuery quotes each term so user input cannot inject FTS5 syntax.
func ftsQuery(q string) string {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, len(fields))
	for i, f := range fields {
		terms[i] = `"` + f + `"`
	}
	return strings.Join(terms, " ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*Document, error) {
	var doc Document
	var createdAt, updatedAt string
	var blob []byte
	if err := s.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Source, &blob,
		&createdAt, &updatedAt, &doc.Score); err != nil {
		return nil, err
	}
	doc.Embedding = decodeVector(blob)
	doc.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	doc.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// encodeVector stores a vector as little-endian float32s. An empty vector
// is stored as NULL.
func encodeVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
