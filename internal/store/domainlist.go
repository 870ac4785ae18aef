package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nsavage/wardendns/internal/fuzzy"
)

// ListActiveEntries returns all active DomainList rows for domain.
func (s *Store) ListActiveEntries(ctx context.Context, domain string) ([]DomainListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	rows, err := s.conn.QueryContext(ctx,
		`SELECT domain, list_type, source, created_at, expires_at
		 FROM domain_lists
		 WHERE domain = ? AND (expires_at IS NULL OR expires_at > ?)`,
		domain, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("list active entries: %w", err)
	}
	defer rows.Close()

	return scanDomainListRows(rows)
}

// GetEntry returns the DomainList row for domain regardless of whether it
// is active, or nil if no row exists. Used to describe a conflicting entry
// to the caller (domain uniqueness means at most one row can exist).
func (s *Store) GetEntry(ctx context.Context, domain string) (*DomainListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.conn.QueryRowContext(ctx,
		`SELECT domain, list_type, source, created_at, expires_at
		 FROM domain_lists WHERE domain = ?`,
		domain,
	)

	var e DomainListEntry
	var listType, source string
	var createdAt int64
	var expiresAt sql.NullInt64

	err := row.Scan(&e.Domain, &listType, &source, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	e.ListType = ListType(listType)
	e.Source = Source(source)
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	if expiresAt.Valid {
		t := time.Unix(expiresAt.Int64, 0).UTC()
		e.ExpiresAt = &t
	}
	return &e, nil
}

// InsertEntry inserts a new DomainList row. If domain already exists, it
// returns an *ErrConflict and no row is written.
func (s *Store) InsertEntry(ctx context.Context, entry DomainListEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expires sql.NullInt64
	if entry.ExpiresAt != nil {
		expires = sql.NullInt64{Int64: entry.ExpiresAt.Unix(), Valid: true}
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO domain_lists (domain, list_type, source, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Domain, string(entry.ListType), string(entry.Source), entry.CreatedAt.Unix(), expires,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return &ErrConflict{Domain: entry.Domain}
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the DomainList row for domain. For source=llm the
// entry must still be active; an expired llm row is treated as not found.
func (s *Store) DeleteEntry(ctx context.Context, domain string, listType ListType, source Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res sql.Result
	var err error
	if source == SourceLLM {
		res, err = s.conn.ExecContext(ctx,
			`DELETE FROM domain_lists
			 WHERE domain = ? AND list_type = ? AND source = ?
			   AND (expires_at IS NULL OR expires_at > ?)`,
			domain, string(listType), string(source), time.Now().Unix(),
		)
	} else {
		res, err = s.conn.ExecContext(ctx,
			`DELETE FROM domain_lists WHERE domain = ? AND list_type = ? AND source = ?`,
			domain, string(listType), string(source),
		)
	}
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n == 0 {
		return &ErrNotFound{Domain: domain}
	}
	return nil
}

// ListEntries returns a filtered, paginated view of DomainList rows plus
// the total matching row count.
func (s *Store) ListEntries(ctx context.Context, filters ListFilters, offset, limit int) ([]DomainListEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if filters.HasSource {
		where = append(where, "source = ?")
		args = append(args, string(filters.Source))
	}
	if filters.HasListType {
		where = append(where, "list_type = ?")
		args = append(args, string(filters.ListType))
	}
	if filters.ActiveAsOf != nil {
		where = append(where, "(expires_at IS NULL OR expires_at > ?)")
		args = append(args, filters.ActiveAsOf.Unix())
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM domain_lists " + whereClause
	if err := s.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT domain, list_type, source, created_at, expires_at FROM domain_lists %s
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`, whereClause)
	args = append(args, limit, offset)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanDomainListRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// AppendLog appends a DomainLog row.
func (s *Store) AppendLog(ctx context.Context, entry DomainLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO domain_logs (domain, status, timestamp) VALUES (?, ?, ?)`,
		entry.Domain, string(entry.Status), entry.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// ListLogs returns a paginated view of DomainLog rows. When keyword is
// non-empty, rows are ordered by fuzzy token-set-ratio score over domain,
// descending, and total counts only the matched rows.
func (s *Store) ListLogs(ctx context.Context, offset, limit int, keyword string) ([]DomainLogEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.TrimSpace(keyword) == "" {
		return s.listLogsPlain(ctx, offset, limit)
	}
	return s.listLogsFuzzy(ctx, offset, limit, keyword)
}

func (s *Store) listLogsPlain(ctx context.Context, offset, limit int) ([]DomainLogEntry, int, error) {
	var total int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM domain_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT domain, status, timestamp FROM domain_logs ORDER BY timestamp DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	entries, err := scanDomainLogRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// listLogsFuzzy scores every row in the table against keyword. DomainLog
// volumes are expected to stay small enough (bounded by operator retention)
// that scoring in Go after a single full scan beats pushing fuzzy scoring
// into SQL.
func (s *Store) listLogsFuzzy(ctx context.Context, offset, limit int, keyword string) ([]DomainLogEntry, int, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT domain, status, timestamp FROM domain_logs`)
	if err != nil {
		return nil, 0, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	all, err := scanDomainLogRows(rows)
	if err != nil {
		return nil, 0, err
	}

	matched := make([]scoredLog, 0, len(all))
	for _, e := range all {
		sc := fuzzy.TokenSetRatio(keyword, e.Domain)
		if sc > 0 {
			matched = append(matched, scoredLog{entry: e, score: sc})
		}
	}

	sortScoredDesc(matched)

	total := len(matched)
	if offset >= total {
		return []DomainLogEntry{}, total, nil
	}
	end := offset + limit
	if end > total || limit <= 0 {
		end = total
	}

	out := make([]DomainLogEntry, 0, end-offset)
	for _, m := range matched[offset:end] {
		out = append(out, m.entry)
	}
	return out, total, nil
}

type scoredLog struct {
	entry DomainLogEntry
	score int
}

// sortScoredDesc is a small insertion sort: log volumes matched by keyword
// are expected to be modest, so this avoids pulling in sort.Slice's
// reflection-based comparator for a handful of rows.
func sortScoredDesc(items []scoredLog) {
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && items[j-1].score < items[j].score {
			items[j-1], items[j] = items[j], items[j-1]
			j--
		}
	}
}

func scanDomainListRows(rows *sql.Rows) ([]DomainListEntry, error) {
	entries := make([]DomainListEntry, 0)
	for rows.Next() {
		var e DomainListEntry
		var listType, source string
		var createdAt int64
		var expiresAt sql.NullInt64

		if err := rows.Scan(&e.Domain, &listType, &source, &createdAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.ListType = ListType(listType)
		e.Source = Source(source)
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		if expiresAt.Valid {
			t := time.Unix(expiresAt.Int64, 0).UTC()
			e.ExpiresAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanDomainLogRows(rows *sql.Rows) ([]DomainLogEntry, error) {
	entries := make([]DomainLogEntry, 0)
	for rows.Next() {
		var e DomainLogEntry
		var status string
		var ts int64
		if err := rows.Scan(&e.Domain, &status, &ts); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		e.Status = LogStatus(status)
		e.Timestamp = time.Unix(ts, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func isUniqueConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
