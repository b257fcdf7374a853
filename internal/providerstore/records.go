package providerstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"watchlist/internal/availability"
	"watchlist/internal/region"
)

const recordColumns = "title_id, region, providers_json, fetched_at"

// Get returns the record stored for key. The boolean is false when no row exists.
func (s *Store) Get(ctx context.Context, key availability.Key) (availability.Record, bool, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM availability WHERE title_id = ? AND region = ?`,
		key.TitleID, string(key.Region),
	)
	raw, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return availability.Record{}, false, nil
	}
	if err != nil {
		return availability.Record{}, false, err
	}
	record, err := raw.decode()
	if err != nil {
		return availability.Record{}, false, err
	}
	return record, true, nil
}

// GetMany returns stored records for the requested keys. Keys without a row are
// absent from the result. Other regions of the same titles are skipped before
// decoding, so a damaged row only fails the batches that ask for it.
func (s *Store) GetMany(ctx context.Context, keys []availability.Key) (map[availability.Key]availability.Record, error) {
	ctx = ensureContext(ctx)
	result := make(map[availability.Key]availability.Record, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	wanted := availability.NewKeySet(keys...)
	titles := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key.TitleID]; ok {
			continue
		}
		seen[key.TitleID] = struct{}{}
		titles = append(titles, key.TitleID)
	}

	for _, chunk := range chunkStrings(titles, maxQueryParams) {
		args := make([]any, len(chunk))
		for i, title := range chunk {
			args[i] = title
		}
		query := `SELECT ` + recordColumns + ` FROM availability WHERE title_id IN (` + makePlaceholders(len(chunk)) + `)`
		if err := s.collect(ctx, query, args, wanted.Has, func(record availability.Record) {
			result[record.Key] = record
		}); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Put upserts record. A stored row with a later fetched_at is left untouched so
// freshness never moves backwards.
func (s *Store) Put(ctx context.Context, record availability.Record) error {
	ctx = ensureContext(ctx)
	if record.Key.TitleID == "" || !record.Key.Region.Valid() {
		return fmt.Errorf("%w: %s", availability.ErrInvalidKey, record.Key)
	}
	payload, err := json.Marshal(availability.NormalizeProviders(record.Providers))
	if err != nil {
		return fmt.Errorf("encode providers for %s: %w", record.Key, err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO availability (`+recordColumns+`) VALUES (?, ?, ?, ?)
		ON CONFLICT(title_id, region) DO UPDATE SET
			providers_json = excluded.providers_json,
			fetched_at = excluded.fetched_at
		WHERE excluded.fetched_at >= availability.fetched_at`,
		record.Key.TitleID,
		string(record.Key.Region),
		string(payload),
		record.FetchedAt.UTC().UnixNano(),
	)
	if err != nil {
		return unavailable("put "+record.Key.String(), err)
	}
	return nil
}

// PutMany upserts records one statement at a time. Failures are reported per
// key and do not stop the remaining writes; a nil map means every write
// committed.
func (s *Store) PutMany(ctx context.Context, records []availability.Record) map[availability.Key]error {
	var failed map[availability.Key]error
	for _, record := range records {
		if err := s.Put(ctx, record); err != nil {
			if failed == nil {
				failed = make(map[availability.Key]error)
			}
			failed[record.Key] = err
		}
	}
	return failed
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	TitleIDs []string
	Region   region.Code
	Limit    int
}

// List returns stored records ordered by title and region.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]availability.Record, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + recordColumns + ` FROM availability`
	var (
		clauses []string
		args    []any
	)
	if len(filter.TitleIDs) > 0 {
		clauses = append(clauses, `title_id IN (`+makePlaceholders(len(filter.TitleIDs))+`)`)
		for _, id := range filter.TitleIDs {
			args = append(args, id)
		}
	}
	if filter.Region != "" {
		clauses = append(clauses, `region = ?`)
		args = append(args, string(filter.Region))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY title_id, region`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var records []availability.Record
	if err := s.collect(ctx, query, args, nil, func(record availability.Record) {
		records = append(records, record)
	}); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteTitles removes every availability record and title reference for the
// given IMDb identifiers. It returns the number of availability rows removed.
func (s *Store) DeleteTitles(ctx context.Context, titleIDs []string) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	for _, chunk := range chunkStrings(titleIDs, maxQueryParams) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := makePlaceholders(len(chunk))
		res, err := s.execWithRetry(ctx, `DELETE FROM availability WHERE title_id IN (`+placeholders+`)`, args...)
		if err != nil {
			return removed, unavailable("delete availability", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += n
		}
		if _, err := s.execWithRetry(ctx, `DELETE FROM titles WHERE imdb_id IN (`+placeholders+`)`, args...); err != nil {
			return removed, unavailable("delete titles", err)
		}
	}
	return removed, nil
}

// Clear removes every cached record and title reference.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, `DELETE FROM availability`)
	if err != nil {
		return 0, unavailable("clear availability", err)
	}
	removed, _ := res.RowsAffected()
	if _, err := s.execWithRetry(ctx, `DELETE FROM titles`); err != nil {
		return removed, unavailable("clear titles", err)
	}
	return removed, nil
}

// collect decodes each row of query and hands it to fn. When keep is set, rows
// whose key it rejects are dropped undecoded.
func (s *Store) collect(ctx context.Context, query string, args []any, keep func(availability.Key) bool, fn func(availability.Record)) error {
	var rows *sql.Rows
	if err := retryOnBusy(ctx, func() error {
		var queryErr error
		rows, queryErr = s.db.QueryContext(ctx, query, args...)
		return queryErr
	}); err != nil {
		return unavailable("query availability", err)
	}
	defer rows.Close()

	for rows.Next() {
		raw, err := scanRow(rows)
		if err != nil {
			return err
		}
		if keep != nil && !keep(raw.key()) {
			continue
		}
		record, err := raw.decode()
		if err != nil {
			return err
		}
		fn(record)
	}
	if err := rows.Err(); err != nil {
		return unavailable("iterate availability", err)
	}
	return nil
}

// storedRow is an availability row as read, before validation.
type storedRow struct {
	titleID   string
	region    string
	payload   sql.NullString
	fetchedAt int64
}

func scanRow(scanner interface{ Scan(dest ...any) error }) (storedRow, error) {
	var row storedRow
	if err := scanner.Scan(&row.titleID, &row.region, &row.payload, &row.fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return row, err
		}
		return row, unavailable("scan availability", err)
	}
	return row, nil
}

func (r storedRow) key() availability.Key {
	return availability.Key{TitleID: r.titleID, Region: region.Code(r.region)}
}

func (r storedRow) decode() (availability.Record, error) {
	key := r.key()
	code, err := region.Parse(r.region)
	if err != nil {
		return availability.Record{}, corrupt(key, "unknown region", err)
	}
	key.Region = code
	if r.titleID == "" {
		return availability.Record{}, corrupt(key, "empty title id", nil)
	}
	if !r.payload.Valid {
		return availability.Record{}, corrupt(key, "missing providers", nil)
	}

	var providers []string
	if err := json.Unmarshal([]byte(r.payload.String), &providers); err != nil {
		return availability.Record{}, corrupt(key, "decode providers", err)
	}
	if slices.Contains(providers, "") {
		return availability.Record{}, corrupt(key, "empty provider name", nil)
	}

	return availability.Record{
		Key:       key,
		Providers: availability.NormalizeProviders(providers),
		FetchedAt: time.Unix(0, r.fetchedAt).UTC(),
	}, nil
}
