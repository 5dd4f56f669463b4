package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/caretrack/directory-cli/internal/model"
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
CREATE TABLE IF NOT EXISTS therapists (
	id             TEXT PRIMARY KEY,
	full_name      TEXT NOT NULL,
	credentials    TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	npi            TEXT NOT NULL DEFAULT '',
	license_number TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS directories (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	adapter_key     TEXT NOT NULL DEFAULT '',
	base_url        TEXT NOT NULL DEFAULT '',
	min_delay_ms    INTEGER NOT NULL DEFAULT 0,
	max_retries     INTEGER NOT NULL DEFAULT 0,
	allow_rendering INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS profile_records (
	id               TEXT PRIMARY KEY,
	therapist_id     TEXT NOT NULL REFERENCES therapists(id),
	directory_id     TEXT NOT NULL REFERENCES directories(id),
	status           TEXT NOT NULL DEFAULT 'unknown',
	profile_url      TEXT NOT NULL DEFAULT '',
	confidence_score REAL,
	last_checked_at  DATETIME,
	history          TEXT NOT NULL DEFAULT '[]',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (therapist_id, directory_id)
);

CREATE INDEX IF NOT EXISTS idx_profile_records_therapist ON profile_records(therapist_id);
CREATE INDEX IF NOT EXISTS idx_profile_records_directory ON profile_records(directory_id);
CREATE INDEX IF NOT EXISTS idx_profile_records_status ON profile_records(status);
CREATE INDEX IF NOT EXISTS idx_therapists_name ON therapists(full_name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertTherapist(ctx context.Context, t model.Therapist) (model.Therapist, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO therapists (id, full_name, credentials, email, npi, license_number, location, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			credentials = excluded.credentials,
			email = excluded.email,
			npi = excluded.npi,
			license_number = excluded.license_number,
			location = excluded.location`,
		t.ID, t.FullName, t.Credentials, t.Email, t.NPI, t.LicenseNumber, t.Location, t.CreatedAt,
	)
	if err != nil {
		return model.Therapist{}, eris.Wrap(err, "sqlite: upsert therapist")
	}
	return t, nil
}

func (s *SQLiteStore) GetTherapist(ctx context.Context, id string) (*model.Therapist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, credentials, email, npi, license_number, location, created_at
		FROM therapists WHERE id = ?`, id)

	var t model.Therapist
	err := row.Scan(&t.ID, &t.FullName, &t.Credentials, &t.Email, &t.NPI, &t.LicenseNumber, &t.Location, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get therapist %s", id)
	}
	return &t, nil
}

func (s *SQLiteStore) ListTherapists(ctx context.Context) ([]model.Therapist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, credentials, email, npi, license_number, location, created_at
		FROM therapists ORDER BY full_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list therapists")
	}
	defer rows.Close()

	var out []model.Therapist
	for rows.Next() {
		var t model.Therapist
		if err := rows.Scan(&t.ID, &t.FullName, &t.Credentials, &t.Email, &t.NPI, &t.LicenseNumber, &t.Location, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan therapist")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertDirectory(ctx context.Context, d model.Directory) (model.Directory, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO directories (id, name, adapter_key, base_url, min_delay_ms, max_retries, allow_rendering, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			adapter_key = excluded.adapter_key,
			base_url = excluded.base_url,
			min_delay_ms = excluded.min_delay_ms,
			max_retries = excluded.max_retries,
			allow_rendering = excluded.allow_rendering`,
		d.ID, d.Name, d.AdapterKey, d.BaseURL, d.MinDelayMs, d.MaxRetries, boolToInt(d.AllowRendering), d.CreatedAt,
	)
	if err != nil {
		return model.Directory{}, eris.Wrap(err, "sqlite: upsert directory")
	}
	return d, nil
}

func (s *SQLiteStore) GetDirectory(ctx context.Context, id string) (*model.Directory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, adapter_key, base_url, min_delay_ms, max_retries, allow_rendering, created_at
		FROM directories WHERE id = ?`, id)

	d, err := scanDirectory(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get directory %s", id)
	}
	return d, nil
}

func (s *SQLiteStore) ListDirectories(ctx context.Context) ([]model.Directory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, adapter_key, base_url, min_delay_ms, max_retries, allow_rendering, created_at
		FROM directories ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list directories")
	}
	defer rows.Close()

	var out []model.Directory
	for rows.Next() {
		d, err := scanDirectory(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan directory")
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetProfileRecord(ctx context.Context, therapistID, directoryID string) (*model.ProfileRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, therapist_id, directory_id, status, profile_url, confidence_score, last_checked_at, history, created_at, updated_at
		FROM profile_records WHERE therapist_id = ? AND directory_id = ?`,
		therapistID, directoryID)

	rec, err := scanProfileRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get profile record %s/%s", therapistID, directoryID)
	}
	return rec, nil
}

func (s *SQLiteStore) UpsertProfileRecord(ctx context.Context, rec *model.ProfileRecord) error {
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
		return eris.Wrap(err, "sqlite: marshal history")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profile_records (id, therapist_id, directory_id, status, profile_url, confidence_score, last_checked_at, history, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(therapist_id, directory_id) DO UPDATE SET
			status = excluded.status,
			profile_url = excluded.profile_url,
			confidence_score = excluded.confidence_score,
			last_checked_at = excluded.last_checked_at,
			history = excluded.history,
			updated_at = excluded.updated_at`,
		rec.ID, rec.TherapistID, rec.DirectoryID, string(rec.Status), rec.ProfileURL,
		rec.ConfidenceScore, rec.LastCheckedAt, string(historyJSON), rec.CreatedAt, rec.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert profile record")
}

func (s *SQLiteStore) ListProfileRecords(ctx context.Context, therapistID string) ([]model.ProfileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, therapist_id, directory_id, status, profile_url, confidence_score, last_checked_at, history, created_at, updated_at
		FROM profile_records WHERE therapist_id = ? ORDER BY directory_id`,
		therapistID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list profile records")
	}
	defer rows.Close()

	var out []model.ProfileRecord
	for rows.Next() {
		rec, err := scanProfileRecord(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan profile record")
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CoverageMatrix(ctx context.Context) ([]model.CoverageCell, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, d.id, COALESCE(pr.status, 'unknown'), COALESCE(pr.profile_url, '')
		FROM therapists t
		CROSS JOIN directories d
		LEFT JOIN profile_records pr ON pr.therapist_id = t.id AND pr.directory_id = d.id
		ORDER BY t.full_name, d.name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: coverage matrix")
	}
	defer rows.Close()

	var out []model.CoverageCell
	for rows.Next() {
		var cell model.CoverageCell
		var status string
		if err := rows.Scan(&cell.TherapistID, &cell.DirectoryID, &status, &cell.ProfileURL); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan coverage cell")
		}
		cell.Status = model.ProfileStatus(status)
		out = append(out, cell)
	}
	return out, rows.Err()
}

func scanDirectory(scan func(...any) error) (*model.Directory, error) {
	var d model.Directory
	var rendering int
	if err := scan(&d.ID, &d.Name, &d.AdapterKey, &d.BaseURL, &d.MinDelayMs, &d.MaxRetries, &rendering, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.AllowRendering = rendering != 0
	return &d, nil
}

func scanProfileRecord(scan func(...any) error) (*model.ProfileRecord, error) {
	var rec model.ProfileRecord
	var status, historyJSON string
	var confidence sql.NullFloat64
	var lastChecked sql.NullTime
	err := scan(&rec.ID, &rec.TherapistID, &rec.DirectoryID, &status, &rec.ProfileURL,
		&confidence, &lastChecked, &historyJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = model.ProfileStatus(status)
	if confidence.Valid {
		rec.ConfidenceScore = &confidence.Float64
	}
	if lastChecked.Valid {
		rec.LastCheckedAt = &lastChecked.Time
	}
	if historyJSON != "" {
		if err := json.Unmarshal([]byte(historyJSON), &rec.History); err != nil {
			return nil, eris.Wrap(err, "unmarshal history")
		}
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
