package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/visitum/visitum-cli/internal/db"
	"github.com/visitum/visitum-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"upsert_city": `INSERT INTO cities (name, country, population) VALUES ($1, $2, $3)
		ON CONFLICT (country, name) DO UPDATE SET population = COALESCE(EXCLUDED.population, cities.population)
		RETURNING id`,
	"model_features": `SELECT c.population, m.visitors_count FROM museums m
		JOIN cities c ON c.id = m.city_id WHERE c.population IS NOT NULL`,
	"insert_run":   `INSERT INTO runs (id, page, status, started_at) VALUES ($1, $2, $3, $4)`,
	"complete_run": `UPDATE runs SET status = $1, rows_cleaned = $2, rows_saved = $3, finished_at = $4 WHERE id = $5`,
	"fail_run":     `UPDATE runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cities (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	country    TEXT NOT NULL,
	population BIGINT,
	UNIQUE (country, name)
);

CREATE TABLE IF NOT EXISTS museums (
	id             BIGSERIAL PRIMARY KEY,
	city_id        BIGINT NOT NULL REFERENCES cities(id),
	name           TEXT NOT NULL,
	visitors_count BIGINT NOT NULL,
	visitors_year  INT NOT NULL,
	UNIQUE (city_id, visitors_year, name)
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	page         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	rows_cleaned INT NOT NULL DEFAULT 0,
	rows_saved   INT NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_museums_city_id ON museums(city_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// SaveEnriched upserts cities one at a time (the museum rows need the
// generated city ids) and bulk-upserts the museum rows in one round trip.
func (s *PostgresStore) SaveEnriched(ctx context.Context, records []model.EnrichedRecord) (int, error) {
	cityIDs := make(map[model.CityKey]int64)
	var museumRows [][]any

	for _, r := range records {
		if !storable(r) {
			zap.L().Warn("postgres: skipping record with incomplete key fields",
				zap.String("name", r.Name),
				zap.String("city", r.City),
				zap.String("country", r.Country),
			)
			continue
		}

		key := model.CityKey{City: r.City, Country: r.Country}
		cityID, seen := cityIDs[key]
		if !seen {
			err := s.pool.QueryRow(ctx,
				`INSERT INTO cities (name, country, population) VALUES ($1, $2, $3)
				 ON CONFLICT (country, name) DO UPDATE SET population = COALESCE(EXCLUDED.population, cities.population)
				 RETURNING id`,
				r.City, r.Country, r.Population,
			).Scan(&cityID)
			if err != nil {
				return 0, eris.Wrapf(err, "postgres: upsert city %s, %s", r.City, r.Country)
			}
			cityIDs[key] = cityID
		}

		museumRows = append(museumRows, []any{cityID, r.Name, r.VisitorsYear, r.VisitorsCount})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "museums",
		Columns:      []string{"city_id", "name", "visitors_year", "visitors_count"},
		ConflictKeys: []string{"city_id", "visitors_year", "name"},
	}, museumRows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save museums")
	}
	return int(n), nil
}

func (s *PostgresStore) ListMuseums(ctx context.Context, limit int) ([]model.EnrichedRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.name, c.name, c.country, m.visitors_count, m.visitors_year, c.population
		 FROM museums m JOIN cities c ON c.id = m.city_id
		 ORDER BY m.visitors_count DESC, m.name
		 LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list museums")
	}
	defer rows.Close()

	var out []model.EnrichedRecord
	for rows.Next() {
		var r model.EnrichedRecord
		var pop *int64
		if err := rows.Scan(&r.Name, &r.City, &r.Country, &r.VisitorsCount, &r.VisitorsYear, &pop); err != nil {
			return nil, eris.Wrap(err, "postgres: scan museum")
		}
		r.Population = pop
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate museums")
}

func (s *PostgresStore) ModelFeatures(ctx context.Context) ([]Feature, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.population, m.visitors_count FROM museums m
		 JOIN cities c ON c.id = m.city_id WHERE c.population IS NOT NULL`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: model features")
	}
	defer rows.Close()

	var out []Feature
	for rows.Next() {
		var f Feature
		if err := rows.Scan(&f.Population, &f.VisitorsCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan feature")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate features")
}

func (s *PostgresStore) StartRun(ctx context.Context, page string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		Page:      page,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, page, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Page, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, rowsCleaned, rowsSaved int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, rows_cleaned = $2, rows_saved = $3, finished_at = $4 WHERE id = $5`,
		string(model.RunStatusComplete), rowsCleaned, rowsSaved, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, page, status, rows_cleaned, rows_saved, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		var run model.Run
		var status string
		var errMsg *string
		var finished *time.Time
		if err := rows.Scan(&run.ID, &run.Page, &status, &run.RowsCleaned, &run.RowsSaved, &errMsg, &run.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		run.Status = model.RunStatus(status)
		if errMsg != nil {
			run.Error = *errMsg
		}
		if finished != nil {
			run.FinishedAt = *finished
		}
		out = append(out, run)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate runs")
}
