package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aboglioli/configd/internal/core/domain"
)

func TestSchemaRepository_SaveFindDelete(t *testing.T) {
	repo := New()
	ctx := context.Background()

	boolProp, err := domain.NewBoolProp(true, nil)
	require.NoError(t, err)

	id, err := domain.NewId("schema-01")
	require.NoError(t, err)

	schema, err := domain.CreateSchema(id, "Schema 01", boolProp, time.Now())
	require.NoError(t, err)

	events, err := repo.Save(ctx, &schema)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	exists, err := repo.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)

	found, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Schema 01", found.Name())

	page, err := repo.Find(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultLimit, page.Limit)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Data, 1)

	require.NoError(t, repo.Delete(ctx, id))
	found, err = repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, found)
}
