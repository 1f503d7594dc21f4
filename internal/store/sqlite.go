package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/visitum/visitum-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cities (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	country    TEXT NOT NULL,
	population INTEGER,
	UNIQUE (country, name)
);

CREATE TABLE IF NOT EXISTS museums (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	city_id        INTEGER NOT NULL REFERENCES cities(id),
	name           TEXT NOT NULL,
	visitors_count INTEGER NOT NULL,
	visitors_year  INTEGER NOT NULL,
	UNIQUE (city_id, visitors_year, name)
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	page         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	rows_cleaned INTEGER NOT NULL DEFAULT 0,
	rows_saved   INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_museums_city_id ON museums(city_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveEnriched(ctx context.Context, records []model.EnrichedRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	saved := 0
	for _, r := range records {
		if !storable(r) {
			zap.L().Warn("sqlite: skipping record with incomplete key fields",
				zap.String("name", r.Name),
				zap.String("city", r.City),
				zap.String("country", r.Country),
			)
			continue
		}

		var cityID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO cities (name, country, population) VALUES (?, ?, ?)
			 ON CONFLICT (country, name) DO UPDATE SET population = COALESCE(excluded.population, population)
			 RETURNING id`,
			r.City, r.Country, r.Population,
		).Scan(&cityID)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert city %s, %s", r.City, r.Country)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO museums (city_id, name, visitors_count, visitors_year) VALUES (?, ?, ?, ?)
			 ON CONFLICT (city_id, visitors_year, name) DO UPDATE SET visitors_count = excluded.visitors_count`,
			cityID, r.Name, r.VisitorsCount, r.VisitorsYear,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert museum %s", r.Name)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return saved, nil
}

func (s *SQLiteStore) ListMuseums(ctx context.Context, limit int) ([]model.EnrichedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.name, c.name, c.country, m.visitors_count, m.visitors_year, c.population
		 FROM museums m JOIN cities c ON c.id = m.city_id
		 ORDER BY m.visitors_count DESC, m.name
		 LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list museums")
	}
	defer rows.Close()

	var out []model.EnrichedRecord
	for rows.Next() {
		var r model.EnrichedRecord
		var pop sql.NullInt64
		if err := rows.Scan(&r.Name, &r.City, &r.Country, &r.VisitorsCount, &r.VisitorsYear, &pop); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan museum")
		}
		if pop.Valid {
			r.Population = &pop.Int64
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate museums")
}

func (s *SQLiteStore) ModelFeatures(ctx context.Context) ([]Feature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.population, m.visitors_count
		 FROM museums m JOIN cities c ON c.id = m.city_id
		 WHERE c.population IS NOT NULL`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: model features")
	}
	defer rows.Close()

	var out []Feature
	for rows.Next() {
		var f Feature
		if err := rows.Scan(&f.Population, &f.VisitorsCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feature")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate features")
}

func (s *SQLiteStore) StartRun(ctx context.Context, page string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		Page:      page,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, page, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Page, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, rowsCleaned, rowsSaved int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, rows_cleaned = ?, rows_saved = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), rowsCleaned, rowsSaved, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, page, status, rows_cleaned, rows_saved, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		var run model.Run
		var status string
		var errMsg sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.Page, &status, &run.RowsCleaned, &run.RowsSaved, &errMsg, &run.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		run.Status = model.RunStatus(status)
		run.Error = errMsg.String
		if finished.Valid {
			run.FinishedAt = finished.Time
		}
		out = append(out, run)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", kind, id)
	}
	return nil
}
