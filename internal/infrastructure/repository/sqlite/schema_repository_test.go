package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aboglioli/configd/internal/core/domain"
)

func openRepo(t *testing.T) *SchemaRepository {
	t.Helper()
	repo, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func envRootProp(t *testing.T) domain.Prop {
	t.Helper()
	envProp, err := domain.NewStringProp(true, nil,
		[]domain.Value{domain.StringValue("dev"), domain.StringValue("stg"), domain.StringValue("prod")}, "")
	require.NoError(t, err)
	return domain.NewObjectProp(map[string]domain.Prop{"env": envProp}, []string{"env"})
}

func envData(env string) domain.Value {
	return domain.ObjectValue(map[string]domain.Value{"env": domain.StringValue(env)}, []string{"env"})
}

func TestSQLiteProjectsSchemaLifecycle(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	now := time.Now()

	id, err := domain.NewId("api")
	require.NoError(t, err)

	schema, err := domain.CreateSchema(id, "API", envRootProp(t), now)
	require.NoError(t, err)

	events, err := repo.Save(ctx, &schema)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.TopicSchemaCreated, events[0].Topic)

	exists, err := repo.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "API", loaded.Name())
	assert.Equal(t, int64(1), loaded.Version().Value())
	assert.Equal(t, domain.PropObject, loaded.RootProp().Kind())

	// Root prop change bumps the DB-owned version counter.
	require.NoError(t, loaded.ChangeRootProp(envRootProp(t), now.Add(time.Second)))
	_, err = repo.Save(ctx, loaded)
	require.NoError(t, err)

	reloaded, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reloaded.Version().Value())

	require.NoError(t, reloaded.Delete(now.Add(2*time.Second)))
	_, err = repo.Save(ctx, reloaded)
	require.NoError(t, err)

	gone, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSQLiteProjectsConfigsAndAccesses(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	now := time.Now()

	schemaID, err := domain.NewId("api")
	require.NoError(t, err)
	schema, err := domain.CreateSchema(schemaID, "API", envRootProp(t), now)
	require.NoError(t, err)

	configID, err := domain.NewId("c1")
	require.NoError(t, err)
	password, err := domain.NewPassword("passwd123")
	require.NoError(t, err)
	require.NoError(t, schema.AddConfig(configID, "C1", envData("dev"), &password, now))

	_, err = repo.Save(ctx, &schema)
	require.NoError(t, err)

	loaded, err := repo.FindByID(ctx, schemaID)
	require.NoError(t, err)
	config, ok := loaded.Configs()[configID.Value()]
	require.True(t, ok)
	assert.Equal(t, "C1", config.Name())
	assert.True(t, config.IsValid())
	require.NotNil(t, config.Password())
	raw, err := domain.NewPassword("passwd123")
	require.NoError(t, err)
	assert.True(t, config.CanAccess(&raw), "hash must survive the round trip")

	// First access inserts a row.
	source, err := domain.NewId("service-a")
	require.NoError(t, err)
	access := domain.NewAccess(source, domain.UnknownId(), now)
	_, err = loaded.GetConfig(configID, access, &raw, now)
	require.NoError(t, err)
	_, err = repo.Save(ctx, loaded)
	require.NoError(t, err)

	withAccess, err := repo.FindByID(ctx, schemaID)
	require.NoError(t, err)
	accesses := withAccess.Configs()[configID.Value()].Accesses()
	require.Len(t, accesses, 1)
	assert.Nil(t, accesses[0].Previous)

	// Second access from the same (source,instance) pings in place.
	later := now.Add(30 * time.Second)
	_, err = withAccess.GetConfig(configID, domain.NewAccess(source, domain.UnknownId(), later), &raw, later)
	require.NoError(t, err)
	_, err = repo.Save(ctx, withAccess)
	require.NoError(t, err)

	pinged, err := repo.FindByID(ctx, schemaID)
	require.NoError(t, err)
	accesses = pinged.Configs()[configID.Value()].Accesses()
	require.Len(t, accesses, 1)
	require.NotNil(t, accesses[0].Previous)

	// Eviction removes the row.
	muchLater := later.Add(time.Hour)
	require.NoError(t, pinged.CleanConfigAccesses(configID, muchLater))
	_, err = repo.Save(ctx, pinged)
	require.NoError(t, err)

	cleaned, err := repo.FindByID(ctx, schemaID)
	require.NoError(t, err)
	assert.Empty(t, cleaned.Configs()[configID.Value()].Accesses())

	// Deleting the config clears its rows.
	require.NoError(t, cleaned.DeleteConfig(configID, &raw, muchLater))
	_, err = repo.Save(ctx, cleaned)
	require.NoError(t, err)

	final, err := repo.FindByID(ctx, schemaID)
	require.NoError(t, err)
	assert.Empty(t, final.Configs())
}

func TestSQLiteFindPaginates(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	now := time.Now()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		id, err := domain.SlugId(name)
		require.NoError(t, err)
		schema, err := domain.CreateSchema(id, name, envRootProp(t), now)
		require.NoError(t, err)
		_, err = repo.Save(ctx, &schema)
		require.NoError(t, err)
	}

	page, err := repo.Find(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "alpha", page.Data[0].ID().Value())
	assert.Equal(t, "beta", page.Data[1].ID().Value())

	rest, err := repo.Find(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest.Data, 1)
	assert.Equal(t, "gamma", rest.Data[0].ID().Value())
}
