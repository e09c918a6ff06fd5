package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustID(t *testing.T, s string) Id {
	t.Helper()
	id, err := NewId(s)
	require.NoError(t, err)
	return id
}

func TestConfigRegisterAccess(t *testing.T) {
	now := time.Date(2022, 7, 25, 19, 0, 0, 0, time.UTC)
	config, err := CreateConfig(mustID(t, "config#01"), "Config", StringValue("data"), true, nil, now)
	require.NoError(t, err)

	config.RegisterAccess(NewAccess(mustID(t, "Source 1"), mustID(t, "instance#01"), now), now)
	config.RegisterAccess(NewAccess(mustID(t, "Source 2"), mustID(t, "instance#01"), now), now)

	require.Len(t, config.Accesses(), 2)
	assert.Equal(t, "Source 1", config.Accesses()[0].Source.Value())
	assert.Equal(t, "Source 2", config.Accesses()[1].Source.Value())

	// Existing source replaces in place.
	config.RegisterAccess(NewAccess(mustID(t, "Source 1"), mustID(t, "instance#01"), now.Add(time.Minute)), now.Add(time.Minute))
	require.Len(t, config.Accesses(), 2)
	assert.Equal(t, "Source 1", config.Accesses()[0].Source.Value())
	assert.NotNil(t, config.Accesses()[0].Previous)

	// New instance under the same source appends rather than replacing.
	config.RegisterAccess(NewAccess(mustID(t, "Source 1"), mustID(t, "instance#02"), now), now)
	require.Len(t, config.Accesses(), 3)
	assert.Equal(t, "instance#02", config.Accesses()[2].Instance.Value())
}

func TestConfigCleanOldAccesses(t *testing.T) {
	now := time.Now()
	config, err := CreateConfig(mustID(t, "config#01"), "Config", StringValue("data"), true, nil, now)
	require.NoError(t, err)

	t1, _ := time.Parse(time.RFC3339, "2022-07-25T19:00:00Z")
	t2, _ := time.Parse(time.RFC3339, "2022-07-25T19:30:00Z")

	config.RegisterAccess(Access{Source: mustID(t, "Source 1"), Instance: mustID(t, "instance#01"), Timestamp: t1}, t1)
	config.RegisterAccess(Access{Source: mustID(t, "Source 2"), Instance: mustID(t, "instance#01"), Timestamp: t2}, t2)
	config.RegisterAccess(Access{Source: mustID(t, "Source 1"), Instance: mustID(t, "instance#02"), Timestamp: now}, now)

	removed := config.CleanOldAccesses(now)

	require.Len(t, removed, 2)
	require.Len(t, config.Accesses(), 1)
	assert.Equal(t, "Source 1", config.Accesses()[0].Source.Value())
	assert.Equal(t, "instance#02", config.Accesses()[0].Instance.Value())
}

func TestConfigCanAccess(t *testing.T) {
	now := time.Now()

	noPassword, err := CreateConfig(mustID(t, "config#01"), "Config", StringValue("data"), true, nil, now)
	require.NoError(t, err)
	pw, _ := NewPassword("passwd123")
	assert.True(t, noPassword.CanAccess(&pw))
	assert.True(t, noPassword.CanAccess(nil))

	raw, err := NewPassword("passwd123")
	require.NoError(t, err)
	withPassword, err := CreateConfig(mustID(t, "config#01"), "Config", StringValue("data"), true, &raw, now)
	require.NoError(t, err)

	assert.NotEqual(t, "passwd123", withPassword.Password().Value())

	correct, _ := NewPassword("passwd123")
	assert.True(t, withPassword.CanAccess(&correct))

	wrong, _ := NewPassword("passwd321")
	assert.False(t, withPassword.CanAccess(&wrong))
	assert.False(t, withPassword.CanAccess(nil))
}

func TestAccessPing(t *testing.T) {
	now := time.Now()
	access := NewAccess(mustID(t, "source"), mustID(t, "instance"), now)
	assert.Nil(t, access.Previous)

	pinged := access.Ping(now.Add(time.Second))
	require.NotNil(t, pinged.Previous)
	assert.Equal(t, now, *pinged.Previous)
	assert.True(t, pinged.Timestamp.After(*pinged.Previous))
}
