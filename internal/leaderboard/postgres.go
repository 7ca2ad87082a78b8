package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/playperu/cityfinder/internal/cityfinder"
)

// PgxQuerier is the subset of *pgxpool.Pool used by PostgresStore.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS leaderboard (
		entry_id            UUID PRIMARY KEY,
		user_id             TEXT NOT NULL,
		username            TEXT NOT NULL,
		profile_picture_url TEXT NOT NULL DEFAULT '',
		time_seconds        DOUBLE PRECISION NOT NULL,
		cities_found        INTEGER NOT NULL,
		found_cities        JSONB NOT NULL,
		min_population      BIGINT NOT NULL,
		max_population      BIGINT NOT NULL,
		allowed_countries   TEXT[] NOT NULL,
		excluded_countries  TEXT[] NOT NULL,
		labels_disabled     BOOLEAN NOT NULL DEFAULT false,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_leaderboard_partition
		ON leaderboard (min_population, max_population, time_seconds, created_at);
`

// PostgresStore keeps the leaderboard in Postgres using array columns for the
// country lists.
type PostgresStore struct {
	db  PgxQuerier
	now func() time.Time
}

func NewPostgresStore(db PgxQuerier) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// EnsureSchema creates the leaderboard table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating leaderboard schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, f Filter, page, pageSize int) (Page, error) {
	page, pageSize = normalizePage(page, pageSize)
	where, args := postgresWhere(f)

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM leaderboard`+where, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("counting leaderboard entries: %w", err)
	}

	n := len(args)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT entry_id::text, user_id, username, profile_picture_url, time_seconds,
			cities_found, found_cities, min_population, max_population,
			allowed_countries, excluded_countries, labels_disabled, created_at
		FROM leaderboard%s
		ORDER BY time_seconds, created_at, entry_id
		LIMIT $%d OFFSET $%d
	`, where, n+1, n+2), append(args, pageSize, offset(page, pageSize))...)
	if err != nil {
		return Page{}, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var found []byte
		err := rows.Scan(&e.EntryID, &e.UserID, &e.Username, &e.ProfilePictureURL, &e.TimeSeconds,
			&e.CitiesFound, &found, &e.MinPopulation, &e.MaxPopulation,
			&e.AllowedCountries, &e.ExcludedCountries, &e.LabelsDisabled, &e.CreatedAt)
		if err != nil {
			return Page{}, fmt.Errorf("scanning leaderboard entry: %w", err)
		}
		if err := json.Unmarshal(found, &e.FoundCities); err != nil {
			return Page{}, fmt.Errorf("decoding found cities of %s: %w", e.EntryID, err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("reading leaderboard rows: %w", err)
	}
	return Page{Entries: entries, Total: int(total)}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, sub Submission, id *cityfinder.Identity) (Entry, error) {
	if !id.SignedIn() {
		return Entry{}, cityfinder.ErrAuthorizationRequired
	}
	e := newEntry(sub, id, s.now())

	found, err := json.Marshal(e.FoundCities)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding found cities: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO leaderboard (
			entry_id, user_id, username, profile_picture_url, time_seconds,
			cities_found, found_cities, min_population, max_population,
			allowed_countries, excluded_countries, labels_disabled, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, e.EntryID, e.UserID, e.Username, e.ProfilePictureURL, e.TimeSeconds,
		e.CitiesFound, found, e.MinPopulation, e.MaxPopulation,
		e.AllowedCountries, e.ExcludedCountries, e.LabelsDisabled, e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("inserting leaderboard entry: %w: %w", cityfinder.ErrStoreRejected, err)
	}
	return e, nil
}

func postgresWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.MinPopulation != 0 {
		add("min_population = $%d", f.MinPopulation)
	}
	if f.MaxPopulation != 0 {
		add("max_population = $%d", f.MaxPopulation)
	}
	if f.CitiesCount != 0 {
		add("cities_found = $%d", f.CitiesCount)
	}
	if f.LabelsDisabled != nil {
		add("labels_disabled = $%d", *f.LabelsDisabled)
	}
	if len(f.AllowedCountries) > 0 {
		add("allowed_countries @> $%d", f.AllowedCountries)
	}
	if len(f.ExcludedCountries) > 0 {
		add("excluded_countries @> $%d", f.ExcludedCountries)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
