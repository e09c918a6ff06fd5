package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aboglioli/configd/internal/core/domain"
	"github.com/aboglioli/configd/internal/infrastructure/repository/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleSchema(t *testing.T) domain.Schema {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)

	def := domain.IntValue(12)
	workers, err := domain.NewIntProp(false, &def, nil, nil, true)
	require.NoError(t, err)
	root := domain.NewObjectProp(map[string]domain.Prop{"workers": workers}, []string{"workers"})

	id, err := domain.NewId("api")
	require.NoError(t, err)
	schema, err := domain.CreateSchema(id, "API", root, now)
	require.NoError(t, err)

	configID, err := domain.NewId("c1")
	require.NoError(t, err)
	password, err := domain.NewPassword("passwd123")
	require.NoError(t, err)
	data := domain.ObjectValue(map[string]domain.Value{"workers": domain.NullValue()}, []string{"workers"})
	require.NoError(t, schema.AddConfig(configID, "C1", data, &password, now))

	source, err := domain.NewId("service-a")
	require.NoError(t, err)
	raw, err := domain.NewPassword("passwd123")
	require.NoError(t, err)
	_, err = schema.GetConfig(configID, domain.NewAccess(source, domain.UnknownId(), now), &raw, now)
	require.NoError(t, err)

	schema.Events() // drop buffered events; the snapshot holds state only
	return schema
}

func TestSnapshotRoundTrip(t *testing.T) {
	schema := sampleSchema(t)

	encoded, err := encodeSchema(schema)
	require.NoError(t, err)

	decoded, err := decodeSchema(encoded)
	require.NoError(t, err)

	assert.Equal(t, schema.ID(), decoded.ID())
	assert.Equal(t, schema.Name(), decoded.Name())
	assert.Equal(t, schema.Version().Value(), decoded.Version().Value())

	config := decoded.Configs()["c1"]
	assert.Equal(t, "C1", config.Name())
	assert.True(t, config.IsValid())
	assert.True(t, config.Data().Equal(schema.Configs()["c1"].Data()))

	raw, err := domain.NewPassword("passwd123")
	require.NoError(t, err)
	assert.True(t, config.CanAccess(&raw), "password hash must survive the snapshot")

	require.Len(t, config.Accesses(), 1)
	assert.Equal(t, "service-a", config.Accesses()[0].Source.Value())

	// An Int default reconstitutes as an Int, not a Float.
	populated := decoded.PopulateConfig(config)
	obj, _, ok := populated.Object()
	require.True(t, ok)
	num, ok := obj["workers"].Int()
	require.True(t, ok)
	assert.Equal(t, int64(12), num)
}

func TestLRUReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	store, err := NewLRUStore(16)
	require.NoError(t, err)
	repo := Wrap(inner, store, testLogger())

	schema := sampleSchema(t)
	_, err = repo.Save(ctx, &schema)
	require.NoError(t, err)

	// First read populates the cache, second read hits it.
	first, err := repo.FindByID(ctx, schema.ID())
	require.NoError(t, err)
	require.NotNil(t, first)

	_, ok := store.entries.Get(key(schema.ID()))
	assert.True(t, ok, "FindByID must populate the store")

	second, err := repo.FindByID(ctx, schema.ID())
	require.NoError(t, err)
	assert.Equal(t, first.Version().Value(), second.Version().Value())

	// Save invalidates.
	require.NoError(t, second.ChangeRootProp(second.RootProp(), time.Now()))
	_, err = repo.Save(ctx, second)
	require.NoError(t, err)
	_, ok = store.entries.Get(key(schema.ID()))
	assert.False(t, ok, "Save must invalidate the cached entry")

	// Delete invalidates too.
	_, err = repo.FindByID(ctx, schema.ID())
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, schema.ID()))
	_, ok = store.entries.Get(key(schema.ID()))
	assert.False(t, ok)
}

func TestRedisStore(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	store, err := NewRedisStore(ctx, "redis://"+srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	srv.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry must expire with its TTL")

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
