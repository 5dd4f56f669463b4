package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/caretrack/directory-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it,
// which keeps the Postgres store unit-testable without a server.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

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
CREATE TABLE IF NOT EXISTS therapists (
	id             TEXT PRIMARY KEY,
	full_name      TEXT NOT NULL,
	credentials    TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	npi            TEXT NOT NULL DEFAULT '',
	license_number TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS directories (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	adapter_key     TEXT NOT NULL DEFAULT '',
	base_url        TEXT NOT NULL DEFAULT '',
	min_delay_ms    INTEGER NOT NULL DEFAULT 0,
	max_retries     INTEGER NOT NULL DEFAULT 0,
	allow_rendering BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profile_records (
	id               TEXT PRIMARY KEY,
	therapist_id     TEXT NOT NULL REFERENCES therapists(id),
	directory_id     TEXT NOT NULL REFERENCES directories(id),
	status           TEXT NOT NULL DEFAULT 'unknown',
	profile_url      TEXT NOT NULL DEFAULT '',
	confidence_score DOUBLE PRECISION,
	last_checked_at  TIMESTAMPTZ,
	history          JSONB NOT NULL DEFAULT '[]',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (therapist_id, directory_id)
);

CREATE INDEX IF NOT EXISTS idx_profile_records_therapist ON profile_records(therapist_id);
CREATE INDEX IF NOT EXISTS idx_profile_records_status ON profile_records(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertTherapist(ctx context.Context, t model.Therapist) (model.Therapist, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO therapists (id, full_name, credentials, email, npi, license_number, location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			credentials = EXCLUDED.credentials,
			email = EXCLUDED.email,
			npi = EXCLUDED.npi,
			license_number = EXCLUDED.license_number,
			location = EXCLUDED.location`,
		t.ID, t.FullName, t.Credentials, t.Email, t.NPI, t.LicenseNumber, t.Location, t.CreatedAt,
	)
	if err != nil {
		return model.Therapist{}, eris.Wrap(err, "postgres: upsert therapist")
	}
	return t, nil
}

func (s *PostgresStore) GetTherapist(ctx context.Context, id string) (*model.Therapist, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, full_name, credentials, email, npi, license_number, location, created_at
		FROM therapists WHERE id = $1`, id)

	var t model.Therapist
	err := row.Scan(&t.ID, &t.FullName, &t.Credentials, &t.Email, &t.NPI, &t.LicenseNumber, &t.Location, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get therapist %s", id)
	}
	return &t, nil
}

func (s *PostgresStore) ListTherapists(ctx context.Context) ([]model.Therapist, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, full_name, credentials, email, npi, license_number, location, created_at
		FROM therapists ORDER BY full_name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list therapists")
	}
	defer rows.Close()

	var out []model.Therapist
	for rows.Next() {
		var t model.Therapist
		if err := rows.Scan(&t.ID, &t.FullName, &t.Credentials, &t.Email, &t.NPI, &t.LicenseNumber, &t.Location, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan therapist")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertDirectory(ctx context.Context, d model.Directory) (model.Directory, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO directories (id, name, adapter_key, base_url, min_delay_ms, max_retries, allow_rendering, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			adapter_key = EXCLUDED.adapter_key,
			base_url = EXCLUDED.base_url,
			min_delay_ms = EXCLUDED.min_delay_ms,
			max_retries = EXCLUDED.max_retries,
			allow_rendering = EXCLUDED.allow_rendering`,
		d.ID, d.Name, d.AdapterKey, d.BaseURL, d.MinDelayMs, d.MaxRetries, d.AllowRendering, d.CreatedAt,
	)
	if err != nil {
		return model.Directory{}, eris.Wrap(err, "postgres: upsert directory")
	}
	return d, nil
}

func (s *PostgresStore) GetDirectory(ctx context.Context, id string) (*model.Directory, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, adapter_key, base_url, min_delay_ms, max_retries, allow_rendering, created_at
		FROM directories WHERE id = $1`, id)

	var d model.Directory
	err := row.Scan(&d.ID, &d.Name, &d.AdapterKey, &d.BaseURL, &d.MinDelayMs, &d.MaxRetries, &d.AllowRendering, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get directory %s", id)
	}
	return &d, nil
}

func (s *PostgresStore) ListDirectories(ctx context.Context) ([]model.Directory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, adapter_key, base_url, min_delay_ms, max_retries, allow_rendering, created_at
		FROM directories ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list directories")
	}
	defer rows.Close()

	var out []model.Directory
	for rows.Next() {
		var d model.Directory
		if err := rows.Scan(&d.ID, &d.Name, &d.AdapterKey, &d.BaseURL, &d.MinDelayMs, &d.MaxRetries, &d.AllowRendering, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan directory")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetProfileRecord(ctx context.Context, therapistID, directoryID string) (*model.ProfileRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, therapist_id, directory_id, status, profile_url, confidence_score, last_checked_at, history, created_at, updated_at
		FROM profile_records WHERE therapist_id = $1 AND directory_id = $2`,
		therapistID, directoryID)

	rec, err := scanPgProfileRecord(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get profile record %s/%s", therapistID, directoryID)
	}
	return rec, nil
}

func (s *PostgresStore) UpsertProfileRecord(ctx context.Context, rec *model.ProfileRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	historyJSON, err := json.Marshal(rec.History)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal history")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO profile_records (id, therapist_id, directory_id, status, profile_url, confidence_score, last_checked_at, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (therapist_id, directory_id) DO UPDATE SET
			status = EXCLUDED.status,
			profile_url = EXCLUDED.profile_url,
			confidence_score = EXCLUDED.confidence_score,
			last_checked_at = EXCLUDED.last_checked_at,
			history = EXCLUDED.history,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, rec.TherapistID, rec.DirectoryID, string(rec.Status), rec.ProfileURL,
		rec.ConfidenceScore, rec.LastCheckedAt, string(historyJSON), rec.CreatedAt, rec.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: upsert profile record")
}

func (s *PostgresStore) ListProfileRecords(ctx context.Context, therapistID string) ([]model.ProfileRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, therapist_id, directory_id, status, profile_url, confidence_score, last_checked_at, history, created_at, updated_at
		FROM profile_records WHERE therapist_id = $1 ORDER BY directory_id`,
		therapistID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list profile records")
	}
	defer rows.Close()

	var out []model.ProfileRecord
	for rows.Next() {
		rec, err := scanPgProfileRecord(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan profile record")
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CoverageMatrix(ctx context.Context) ([]model.CoverageCell, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, d.id, COALESCE(pr.status, 'unknown'), COALESCE(pr.profile_url, '')
		FROM therapists t
		CROSS JOIN directories d
		LEFT JOIN profile_records pr ON pr.therapist_id = t.id AND pr.directory_id = d.id
		ORDER BY t.full_name, d.name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: coverage matrix")
	}
	defer rows.Close()

	var out []model.CoverageCell
	for rows.Next() {
		var cell model.CoverageCell
		var status string
		if err := rows.Scan(&cell.TherapistID, &cell.DirectoryID, &status, &cell.ProfileURL); err != nil {
			return nil, eris.Wrap(err, "postgres: scan coverage cell")
		}
		cell.Status = model.ProfileStatus(status)
		out = append(out, cell)
	}
	return out, rows.Err()
}

func scanPgProfileRecord(scan func(...any) error) (*model.ProfileRecord, error) {
	var rec model.ProfileRecord
	var status string
	var historyJSON []byte
	var confidence *float64
	var lastChecked *time.Time
	err := scan(&rec.ID, &rec.TherapistID, &rec.DirectoryID, &status, &rec.ProfileURL,
		&confidence, &lastChecked, &historyJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = model.ProfileStatus(status)
	rec.ConfidenceScore = confidence
	rec.LastCheckedAt = lastChecked
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &rec.History); err != nil {
			return nil, eris.Wrap(err, "unmarshal history")
		}
	}
	return &rec, nil
}
