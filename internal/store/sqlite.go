package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxTxAttempts = 5
	txBackoff     = 10 * time.Millisecond
)

// DocStore implements the document store over a single documents table
// with JSONB data, one logical collection per key prefix.
type DocStore struct {
	db     *sql.DB
	broker *Broker
}

func New(db *sql.DB) *DocStore {
	return &DocStore{db: db, broker: NewBroker()}
}

// Get unmarshals the document into dest.
func (s *DocStore) Get(ctx context.Context, collection, id string, dest any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// Set writes the full document, creating or replacing it.
func (s *DocStore) Set(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, jsonb(?), ?)
		 ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(data), FormatTime(time.Now()),
	)
	if err != nil {
		return err
	}
	s.publish(ctx, collection, id)
	return nil
}

// Add writes the document under a fresh auto-generated id.
func (s *DocStore) Add(ctx context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes the document.
func (s *DocStore) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	s.broker.Publish(collection+"/"+id, nil)
	return nil
}

// Update applies a partial update of dotted-path fields to an existing
// document. A nil value writes JSON null; an Increment value adds to
// the stored number. Fails with ErrNotFound if the document is missing.
func (s *DocStore) Update(ctx context.Context, collection, id string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	paths := make([]string, 0, len(updates))
	for p := range updates {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	expr := "data"
	var args []any
	for _, p := range paths {
		jp := jsonPath(p)
		switch v := updates[p].(type) {
		case Increment:
			expr = fmt.Sprintf("jsonb_set(%s, ?, COALESCE(json_extract(data, ?), 0) + ?)", expr)
			args = append(args, jp, jp, float64(v))
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			expr = fmt.Sprintf("jsonb_set(%s, ?, jsonb(?))", expr)
			args = append(args, jp, string(data))
		}
	}

	args = append(args, FormatTime(time.Now()), collection, id)
	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE documents SET data = %s, updated_at = ? WHERE collection = ? AND id = ?`, expr),
		args...,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	s.publish(ctx, collection, id)
	return nil
}

// Merge applies dotted-path fields, creating the document if missing.
func (s *DocStore) Merge(ctx context.Context, collection, id string, updates map[string]any) error {
	return s.Transaction(ctx, collection, id, func(raw []byte) (any, error) {
		doc := map[string]any{}
		if raw != nil {
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, err
			}
		}
		for path, v := range updates {
			mergePath(doc, strings.Split(path, "."), v)
		}
		return doc, nil
	})
}

// Transaction runs fn against the current document JSON (nil if the
// document does not exist) inside a read-check-write transaction. The
// returned value replaces the document; returning nil deletes it; an
// error from fn aborts without retry. Busy/locked conflicts are retried
// up to maxTxAttempts with linear backoff, then surfaced to the caller.
func (s *DocStore) Transaction(ctx context.Context, collection, id string, fn func(raw []byte) (any, error)) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.tryTransaction(ctx, collection, id, fn)
		if err == nil {
			s.publish(ctx, collection, id)
			return nil
		}
		if !isBusy(err) {
			return err
		}
		select {
		case <-time.After(time.Duration(attempt) * txBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("transaction on %s/%s: %w", collection, id, err)
}

func (s *DocStore) tryTransaction(ctx context.Context, collection, id string, fn func(raw []byte) (any, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw []byte
	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT json(data) FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		raw = nil
	case err != nil:
		return err
	default:
		raw = []byte(data)
	}

	doc, err := fn(raw)
	if err != nil {
		return err
	}

	if doc == nil {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id,
		); err != nil {
			return err
		}
		return tx.Commit()
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, jsonb(?), ?)
		 ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(out), FormatTime(time.Now()),
	); err != nil {
		return err
	}
	return tx.Commit()
}

var allowedOps = map[string]string{
	"==": "=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

// Query returns raw documents matching q within one collection.
func (s *DocStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, json(data) FROM documents WHERE collection = ?`)
	args := []any{collection}

	for _, f := range q.Filters {
		op, ok := allowedOps[f.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
		fmt.Fprintf(&sb, " AND json_extract(data, ?) %s ?", op)
		args = append(args, jsonPath(f.Path), filterArg(f.Value))
	}

	for i, o := range q.OrderBy {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString("json_extract(data, ?)")
		args = append(args, jsonPath(o.Path))
		if o.Desc {
			sb.WriteString(" DESC")
		}
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var data string
		if err := rows.Scan(&d.ID, &data); err != nil {
			return nil, err
		}
		d.Data = []byte(data)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Subscribe returns a channel of document snapshots for collection/id
// and a cancel func. Cancellation is explicit; the channel receives nil
// when the document is deleted.
func (s *DocStore) Subscribe(collection, id string) (<-chan []byte, func()) {
	key := collection + "/" + id
	ch := s.broker.Subscribe(key)
	return ch, func() { s.broker.Unsubscribe(key, ch) }
}

// publish pushes the current document state to subscribers after a
// committed write.
func (s *DocStore) publish(ctx context.Context, collection, id string) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)
	if err != nil {
		s.broker.Publish(collection+"/"+id, nil)
		return
	}
	s.broker.Publish(collection+"/"+id, []byte(data))
}

// jsonPath converts a dotted path to a SQLite JSON path, quoting each
// segment so ids containing dashes or leading digits stay intact.
func jsonPath(dotted string) string {
	segs := strings.Split(dotted, ".")
	var sb strings.Builder
	sb.WriteString("$")
	for _, seg := range segs {
		sb.WriteString(`."`)
		sb.WriteString(seg)
		sb.WriteString(`"`)
	}
	return sb.String()
}

// filterArg normalizes filter values for comparison against
// json_extract results (JSON booleans extract as 0/1).
func filterArg(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func mergePath(doc map[string]any, segs []string, v any) {
	if len(segs) == 1 {
		if inc, ok := v.(Increment); ok {
			cur, _ := doc[segs[0]].(float64)
			doc[segs[0]] = cur + float64(inc)
			return
		}
		doc[segs[0]] = v
		return
	}
	child, ok := doc[segs[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		doc[segs[0]] = child
	}
	mergePath(child, segs[1:], v)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
