package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Document is a stored processing result: a question paper, solution
// paper or answer sheet, addressed by (kind, name). Name is typically
// the source file's base name.
type Document struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Payload   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Decode unmarshals the document payload into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Payload, v); err != nil {
		return fmt.Errorf("decode %s document %q: %w", d.Kind, d.Name, err)
	}
	return nil
}

// SaveDocument stores a document, replacing any previous payload with
// the same kind and name. Processing a document again overwrites its
// stored form wholesale.
func (s *Store) SaveDocument(kind, name string, payload any) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s document: %w", kind, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO documents (kind, name, payload, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(kind, name) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		kind, name, string(data), time.Now(),
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRow(`SELECT id FROM documents WHERE kind = ? AND name = ?`, kind, name).Scan(&id)
	return id, err
}

// GetDocument returns a document by ID.
func (s *Store) GetDocument(id int64) (Document, error) {
	var d Document
	var payload string
	err := s.db.QueryRow(
		`SELECT id, kind, name, payload, created_at FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Kind, &d.Name, &payload, &d.CreatedAt)
	d.Payload = []byte(payload)
	return d, err
}

// GetDocumentByName returns a document by kind and name, or nil when
// absent.
func (s *Store) GetDocumentByName(kind, name string) (*Document, error) {
	var d Document
	var payload string
	err := s.db.QueryRow(
		`SELECT id, kind, name, payload, created_at FROM documents WHERE kind = ? AND name = ?`,
		kind, name,
	).Scan(&d.ID, &d.Kind, &d.Name, &payload, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Payload = []byte(payload)
	return &d, nil
}

// ListDocuments returns documents of one kind, newest first, without
// payloads. An empty kind lists everything.
func (s *Store) ListDocuments(kind string) ([]Document, error) {
	query := `SELECT id, kind, name, created_at FROM documents ORDER BY id DESC`
	var args []any
	if kind != "" {
		query = `SELECT id, kind, name, created_at FROM documents WHERE kind = ? ORDER BY id DESC`
		args = append(args, kind)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Kind, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DocumentCount returns the number of stored documents of one kind.
func (s *Store) DocumentCount(kind string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM documents WHERE kind = ?`, kind).Scan(&count)
	return count, err
}
