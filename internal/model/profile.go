package model

import "time"

// ProfileStatus is the lifecycle state of a therapist x directory pairing.
type ProfileStatus string

const (
	// StatusUnknown means no record exists yet for the pairing.
	StatusUnknown ProfileStatus = "unknown"
	// StatusSearching marks an in-flight discovery search.
	StatusSearching ProfileStatus = "searching"
	// StatusFoundUnconfirmed means at least one candidate cleared the low
	// cutoff and awaits human review.
	StatusFoundUnconfirmed ProfileStatus = "found_unconfirmed"
	// StatusNotFound means the search completed with zero qualifying candidates.
	StatusNotFound ProfileStatus = "not_found"
	// StatusBlocked means the site's defenses prevented the search.
	StatusBlocked ProfileStatus = "blocked"

	// Confirmed states, reachable only through human confirmation.
	StatusActiveManaged    ProfileStatus = "active_managed"
	StatusExistsUnmanaged  ProfileStatus = "exists_unmanaged"
	StatusNeedsClaiming    ProfileStatus = "needs_claiming"
	StatusTherapistManaged ProfileStatus = "therapist_managed"

	// StatusWithdrawn marks an explicitly deactivated profile. The record is
	// retained for audit.
	StatusWithdrawn ProfileStatus = "withdrawn"
)

// Confirmed reports whether the status is one of the four human-confirmed
// sub-states.
func (s ProfileStatus) Confirmed() bool {
	switch s {
	case StatusActiveManaged, StatusExistsUnmanaged, StatusNeedsClaiming, StatusTherapistManaged:
		return true
	}
	return false
}

// HistoryEntry records one status transition on a profile record.
type HistoryEntry struct {
	From ProfileStatus `json:"from"`
	To   ProfileStatus `json:"to"`
	At   time.Time     `json:"at"`
	Note string        `json:"note,omitempty"`
}

// ProfileRecord is the durable entity tracking one therapist on one
// directory. Unique per (TherapistID, DirectoryID); mutated only through
// state transitions and never deleted.
type ProfileRecord struct {
	ID              string          `json:"id" db:"id"`
	TherapistID     string          `json:"therapist_id" db:"therapist_id"`
	DirectoryID     string          `json:"directory_id" db:"directory_id"`
	Status          ProfileStatus   `json:"status" db:"status"`
	ProfileURL      string          `json:"profile_url,omitempty" db:"profile_url"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty" db:"confidence_score"`
	LastCheckedAt   *time.Time      `json:"last_checked_at,omitempty" db:"last_checked_at"`
	History         []HistoryEntry  `json:"history,omitempty" db:"history"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// CoverageCell is one therapist x directory entry in the coverage matrix.
type CoverageCell struct {
	TherapistID string        `json:"therapist_id"`
	DirectoryID string        `json:"directory_id"`
	Status      ProfileStatus `json:"status"`
	ProfileURL  string        `json:"profile_url,omitempty"`
}
