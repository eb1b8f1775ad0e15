package sqlite

import (
	"context"
	"strings"
	"time"

	gateway "github.com/ryuka-api/ryuka/internal"
)

// timeLayout is fixed-width so lexical order in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// InsertFetches batch-inserts fetch log records.
func (s *Store) InsertFetches(ctx context.Context, records []gateway.FetchRecord) error {
	if len(records) == 0 {
		return nil
	}

	// cols must match the number of columns in the INSERT below.
	const cols = 10
	placeholders := make([]string, len(records))
	args := make([]any, 0, len(records)*cols)

	for i, r := range records {
		placeholders[i] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args,
			r.ID, r.RequestID, string(r.Kind), r.Target, r.Provider,
			r.Outcome, string(r.Class), r.Attempts, r.LatencyMs,
			r.CreatedAt.UTC().Format(timeLayout),
		)
	}

	query := `INSERT INTO fetch_log
		(id, request_id, kind, target, provider, outcome, error_class, attempts, latency_ms, created_at)
		VALUES ` + strings.Join(placeholders, ", ")

	_, err := s.write.ExecContext(ctx, query, args...)
	return err
}

// ListFetches returns the most recent records matching the filter, newest first.
func (s *Store) ListFetches(ctx context.Context, f gateway.FetchFilter) ([]gateway.FetchRecord, error) {
	where, args := fetchWhere(f)
	query := `SELECT id, request_id, kind, target, provider, outcome, error_class,
		attempts, latency_ms, created_at
		FROM fetch_log` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))

	rows, err := s.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]gateway.FetchRecord, 0)
	for rows.Next() {
		var r gateway.FetchRecord
		var kind, class, createdAt string
		err := rows.Scan(
			&r.ID, &r.RequestID, &kind, &r.Target, &r.Provider, &r.Outcome, &class,
			&r.Attempts, &r.LatencyMs, &createdAt,
		)
		if err != nil {
			return nil, err
		}
		r.Kind = gateway.Kind(kind)
		r.Class = gateway.Class(class)
		if t, e := time.Parse(timeLayout, createdAt); e == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SummarizeFetches counts records per kind and outcome created at or after since.
func (s *Store) SummarizeFetches(ctx context.Context, since time.Time) ([]gateway.FetchSummary, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT kind, outcome, COUNT(*), COALESCE(AVG(latency_ms), 0)
		 FROM fetch_log WHERE created_at >= ?
		 GROUP BY kind, outcome ORDER BY kind, outcome`,
		since.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]gateway.FetchSummary, 0)
	for rows.Next() {
		var sum gateway.FetchSummary
		var kind string
		if err := rows.Scan(&kind, &sum.Outcome, &sum.Count, &sum.AvgLatencyMs); err != nil {
			return nil, err
		}
		sum.Kind = gateway.Kind(kind)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// PruneFetches deletes records created before cutoff.
func (s *Store) PruneFetches(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.write.ExecContext(ctx,
		`DELETE FROM fetch_log WHERE created_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func fetchWhere(f gateway.FetchFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	default:
		return n
	}
}
