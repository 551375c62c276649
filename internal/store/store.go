// Package store persists close-approach records keyed by UTC day index.
//
// A day present in the store is authoritative cache content, including days
// confirmed to have no objects at all. A range read succeeds only when every
// day of the range is present; the caller treats anything less as a miss and
// refreshes the whole range.
//
// # Thread safety
//
// Store is safe for concurrent use. Each Update call runs in its own
// transaction and replaces its days atomically; concurrent updates for
// overlapping days are not serialized beyond that, so the last committed
// write for a day wins.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/trantila/spache/internal/calendar"
	"github.com/trantila/spache/internal/neoapi"
)

// DayRecords maps a day index to the ordered close-approach objects cached
// for that day. An empty slice is a valid cached value: it means the day was
// fetched and confirmed empty.
type DayRecords map[int64][]neoapi.Object

// Store handles persistence of per-day close-approach records.
type Store struct {
	db *sql.DB
}

// Open creates a new SQLite store at the given path. The database is created
// if it doesn't exist and migrations are applied automatically.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS close_approach_days (
		day INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS close_approaches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		day INTEGER NOT NULL,
		neo_id TEXT NOT NULL,
		name TEXT NOT NULL,
		closest_distance_au REAL,
		relative_velocity_kmps REAL,
		orbiting_body TEXT,
		near_earth_object TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_close_approaches_day ON close_approaches(day);
	`
	_, err := s.db.Exec(schema)
	return err
}

// QueryRange reads the cached records for every day in [from, to],
// end-inclusive. The second return value reports a cache hit: it is false
// unless every single day of the range has a stored row, and no partial
// result is ever returned.
func (s *Store) QueryRange(ctx context.Context, from, to time.Time) (DayRecords, bool, error) {
	fromDay, toDay := calendar.DayIndex(from), calendar.DayIndex(to)

	var present int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM close_approach_days WHERE day BETWEEN ? AND ?",
		fromDay, toDay,
	).Scan(&present)
	if err != nil {
		return nil, false, fmt.Errorf("failed to scan cached days: %w", err)
	}

	// Any missing day invalidates the whole range.
	if present < toDay-fromDay+1 {
		return nil, false, nil
	}

	records := make(DayRecords, toDay-fromDay+1)
	for day := fromDay; day <= toDay; day++ {
		records[day] = []neoapi.Object{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT day, near_earth_object
		FROM close_approaches
		WHERE day BETWEEN ? AND ?
		ORDER BY day ASC, id ASC
	`, fromDay, toDay)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query range: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day int64
		var payload []byte
		if err := rows.Scan(&day, &payload); err != nil {
			return nil, false, fmt.Errorf("failed to scan row: %w", err)
		}

		var obj neoapi.Object
		if err := json.Unmarshal(payload, &obj); err != nil {
			return nil, false, fmt.Errorf("failed to decode object for day %d: %w", day, err)
		}
		records[day] = append(records[day], obj)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read range: %w", err)
	}

	return records, true, nil
}

// Update replaces the stored rows for exactly the day indices present in
// records, atomically within one transaction. Days absent from the input are
// untouched. Replacement is delete-then-insert, never a merge.
func (s *Store) Update(ctx context.Context, records DayRecords) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update: %w", err)
	}
	defer tx.Rollback()

	deleteDay, err := tx.PrepareContext(ctx, "DELETE FROM close_approach_days WHERE day = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer deleteDay.Close()

	deleteApproaches, err := tx.PrepareContext(ctx, "DELETE FROM close_approaches WHERE day = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer deleteApproaches.Close()

	insertDay, err := tx.PrepareContext(ctx, "INSERT INTO close_approach_days (day) VALUES (?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insertDay.Close()

	insertApproach, err := tx.PrepareContext(ctx, `
		INSERT INTO close_approaches
			(day, neo_id, name, closest_distance_au, relative_velocity_kmps, orbiting_body, near_earth_object)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insertApproach.Close()

	for day, objects := range records {
		if _, err := deleteApproaches.ExecContext(ctx, day); err != nil {
			return fmt.Errorf("failed to clear day %d: %w", day, err)
		}
		if _, err := deleteDay.ExecContext(ctx, day); err != nil {
			return fmt.Errorf("failed to clear day %d: %w", day, err)
		}
		if _, err := insertDay.ExecContext(ctx, day); err != nil {
			return fmt.Errorf("failed to insert day %d: %w", day, err)
		}

		for _, obj := range objects {
			payload, err := json.Marshal(obj)
			if err != nil {
				return fmt.Errorf("failed to encode object %s: %w", obj.ID, err)
			}

			distance, velocity, body := flattenFirstApproach(obj)
			if _, err := insertApproach.ExecContext(ctx,
				day, obj.ID, obj.Name, distance, velocity, body, payload,
			); err != nil {
				return fmt.Errorf("failed to insert object %s: %w", obj.ID, err)
			}
		}
	}

	return tx.Commit()
}

// flattenFirstApproach projects the first approach event of an object into
// scalar columns. Objects with several approach events in one window keep
// only the first; later events are dropped, matching the feed's per-window
// grouping. Objects without events get NULL columns.
func flattenFirstApproach(obj neoapi.Object) (distance, velocity sql.NullFloat64, body sql.NullString) {
	if len(obj.CloseApproachData) == 0 {
		return
	}
	first := obj.CloseApproachData[0]

	if v, err := strconv.ParseFloat(first.MissDistance.Astronomical, 64); err == nil {
		distance = sql.NullFloat64{Float64: v, Valid: true}
	}
	if v, err := strconv.ParseFloat(first.RelativeVelocity.KilometersPerSecond, 64); err == nil {
		velocity = sql.NullFloat64{Float64: v, Valid: true}
	}
	body = sql.NullString{String: first.OrbitingBody, Valid: true}
	return
}

// DaySummary describes one cached day for inspection tooling.
type DaySummary struct {
	Day     int64
	Date    time.Time
	Objects int
}

// Coverage lists every cached day with its object count, ascending by day.
// Used by the cache inspector; not part of the caching hot path.
func (s *Store) Coverage(ctx context.Context) ([]DaySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.day, COUNT(a.id)
		FROM close_approach_days d
		LEFT JOIN close_approaches a ON a.day = d.day
		GROUP BY d.day
		ORDER BY d.day ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query coverage: %w", err)
	}
	defer rows.Close()

	var summaries []DaySummary
	for rows.Next() {
		var day DaySummary
		if err := rows.Scan(&day.Day, &day.Objects); err != nil {
			return nil, fmt.Errorf("failed to scan coverage row: %w", err)
		}
		day.Date = calendar.DateForDayIndex(day.Day)
		summaries = append(summaries, day)
	}
	return summaries, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
