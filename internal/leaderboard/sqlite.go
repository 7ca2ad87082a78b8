package leaderboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/playperu/cityfinder/internal/cityfinder"
)

// createdAtLayout is fixed width so that text ordering matches time ordering.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

const entryColumns = `entry_id, user_id, username, profile_picture_url, time_seconds,
	cities_found, found_cities, min_population, max_population,
	allowed_countries, excluded_countries, labels_disabled, created_at`

// SQLiteStore keeps the leaderboard in the libSQL database managed by the
// migrations package. Country lists and found cities are stored as JSON text.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Query(ctx context.Context, f Filter, page, pageSize int) (Page, error) {
	page, pageSize = normalizePage(page, pageSize)
	where, args := sqliteWhere(f)

	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leaderboard`+where, args...).Scan(&total)
	if err != nil {
		return Page{}, fmt.Errorf("counting leaderboard entries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM leaderboard`+where+`
		ORDER BY time_seconds, created_at, entry_id
		LIMIT ? OFFSET ?
	`, append(args, pageSize, offset(page, pageSize))...)
	if err != nil {
		return Page{}, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanSQLiteEntry(rows)
		if err != nil {
			return Page{}, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("reading leaderboard rows: %w", err)
	}
	return Page{Entries: entries, Total: total}, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, sub Submission, id *cityfinder.Identity) (Entry, error) {
	if !id.SignedIn() {
		return Entry{}, cityfinder.ErrAuthorizationRequired
	}
	e := newEntry(sub, id, s.now())

	found, err := json.Marshal(e.FoundCities)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding found cities: %w", err)
	}
	allowed, _ := json.Marshal(e.AllowedCountries)
	excluded, _ := json.Marshal(e.ExcludedCountries)
	labels := 0
	if e.LabelsDisabled {
		labels = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leaderboard (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.EntryID, e.UserID, e.Username, e.ProfilePictureURL, e.TimeSeconds,
		e.CitiesFound, string(found), e.MinPopulation, e.MaxPopulation,
		string(allowed), string(excluded), labels, e.CreatedAt.Format(createdAtLayout))
	if err != nil {
		return Entry{}, fmt.Errorf("inserting leaderboard entry: %w: %w", cityfinder.ErrStoreRejected, err)
	}
	return e, nil
}

func sqliteWhere(f Filter) (string, []any) {
	var conds []string
	var args []any

	if f.MinPopulation != 0 {
		conds = append(conds, "min_population = ?")
		args = append(args, f.MinPopulation)
	}
	if f.MaxPopulation != 0 {
		conds = append(conds, "max_population = ?")
		args = append(args, f.MaxPopulation)
	}
	if f.CitiesCount != 0 {
		conds = append(conds, "cities_found = ?")
		args = append(args, f.CitiesCount)
	}
	if f.LabelsDisabled != nil {
		labels := 0
		if *f.LabelsDisabled {
			labels = 1
		}
		conds = append(conds, "labels_disabled = ?")
		args = append(args, labels)
	}
	for _, c := range f.AllowedCountries {
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(allowed_countries) WHERE value = ?)")
		args = append(args, c)
	}
	for _, c := range f.ExcludedCountries {
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(excluded_countries) WHERE value = ?)")
		args = append(args, c)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanSQLiteEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var found, allowed, excluded, createdAt string
	var labels int
	err := rows.Scan(&e.EntryID, &e.UserID, &e.Username, &e.ProfilePictureURL, &e.TimeSeconds,
		&e.CitiesFound, &found, &e.MinPopulation, &e.MaxPopulation,
		&allowed, &excluded, &labels, &createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("scanning leaderboard entry: %w", err)
	}
	e.LabelsDisabled = labels != 0

	if err := json.Unmarshal([]byte(found), &e.FoundCities); err != nil {
		return Entry{}, fmt.Errorf("decoding found cities of %s: %w", e.EntryID, err)
	}
	if err := json.Unmarshal([]byte(allowed), &e.AllowedCountries); err != nil {
		return Entry{}, fmt.Errorf("decoding allowed countries of %s: %w", e.EntryID, err)
	}
	if err := json.Unmarshal([]byte(excluded), &e.ExcludedCountries); err != nil {
		return Entry{}, fmt.Errorf("decoding excluded countries of %s: %w", e.EntryID, err)
	}
	if e.CreatedAt, err = time.Parse(createdAtLayout, createdAt); err != nil {
		return Entry{}, fmt.Errorf("parsing created_at of %s: %w", e.EntryID, err)
	}
	return e, nil
}
