package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity_HasNPI(t *testing.T) {
	assert.True(t, Identity{NPI: "1234567893"}.HasNPI())
	assert.False(t, Identity{NPI: ""}.HasNPI())
	assert.False(t, Identity{NPI: "12345"}.HasNPI())
	assert.False(t, Identity{NPI: "12345678901"}.HasNPI())
	assert.False(t, Identity{NPI: "123456789x"}.HasNPI())
}

func TestTherapist_Identity(t *testing.T) {
	th := Therapist{
		ID:            "t1",
		FullName:      "Jane Doe",
		NPI:           "1234567893",
		LicenseNumber: "LCSW-12345",
		Location:      "Austin, TX",
	}
	id := th.Identity()
	assert.Equal(t, "Jane Doe", id.FullName)
	assert.Equal(t, "1234567893", id.NPI)
	assert.Equal(t, "LCSW-12345", id.LicenseNumber)
	assert.Equal(t, "Austin, TX", id.Location)
}

func TestOutcomeKind_Blocked(t *testing.T) {
	assert.True(t, OutcomeSoftBlock.Blocked())
	assert.True(t, OutcomeHardBlock.Blocked())
	assert.False(t, OutcomeSuccess.Blocked())
	assert.False(t, OutcomeNoResults.Blocked())
	assert.False(t, OutcomeNetworkFailure.Blocked())
}

func TestProfileStatus_Confirmed(t *testing.T) {
	for _, s := range []ProfileStatus{
		StatusActiveManaged, StatusExistsUnmanaged, StatusNeedsClaiming, StatusTherapistManaged,
	} {
		assert.True(t, s.Confirmed(), string(s))
	}
	for _, s := range []ProfileStatus{
		StatusUnknown, StatusSearching, StatusFoundUnconfirmed, StatusNotFound,
		StatusBlocked, StatusWithdrawn,
	} {
		assert.False(t, s.Confirmed(), string(s))
	}
}
