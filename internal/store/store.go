// Package store is the persistence boundary. The discovery engine never
// talks to a database directly; everything durable crosses the Store
// interface, with SQLite and Postgres implementations behind it.
package store

import (
	"context"
	"time"

	"github.com/caretrack/directory-cli/internal/model"
)

// Store defines the repository consumed by the discovery engine and CLI.
type Store interface {
	// Therapists
	UpsertTherapist(ctx context.Context, t model.Therapist) (model.Therapist, error)
	GetTherapist(ctx context.Context, id string) (*model.Therapist, error)
	ListTherapists(ctx context.Context) ([]model.Therapist, error)

	// Directories
	UpsertDirectory(ctx context.Context, d model.Directory) (model.Directory, error)
	GetDirectory(ctx context.Context, id string) (*model.Directory, error)
	ListDirectories(ctx context.Context) ([]model.Directory, error)

	// Profile records; unique per (therapist_id, directory_id), never deleted.
	GetProfileRecord(ctx context.Context, therapistID, directoryID string) (*model.ProfileRecord, error)
	UpsertProfileRecord(ctx context.Context, rec *model.ProfileRecord) error
	ListProfileRecords(ctx context.Context, therapistID string) ([]model.ProfileRecord, error)
	CoverageMatrix(ctx context.Context) ([]model.CoverageCell, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// SeedDirectories inserts the stock directories when the table is empty, so
// a fresh install can search immediately.
func SeedDirectories(ctx context.Context, s Store) error {
	existing, err := s.ListDirectories(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, d := range []model.Directory{
		{
			Name:           "Psychology Today",
			AdapterKey:     "psychology_today",
			BaseURL:        "https://www.psychologytoday.com",
			AllowRendering: true,
			CreatedAt:      now,
		},
		{
			Name:       "Zencare",
			AdapterKey: "zencare",
			BaseURL:    "https://zencare.co",
			CreatedAt:  now,
		},
		{
			Name:       "TherapyDen",
			AdapterKey: "therapyden",
			BaseURL:    "https://www.therapyden.com",
			CreatedAt:  now,
		},
	} {
		if _, err := s.UpsertDirectory(ctx, d); err != nil {
			return err
		}
	}
	return nil
}
