package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaCreate(t *testing.T) {
	boolProp, err := NewBoolProp(true, nil)
	require.NoError(t, err)

	schema, err := CreateSchema(mustID(t, "schema-01"), "Schema 01", boolProp, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "schema-01", schema.ID().Value())
	assert.Equal(t, "Schema 01", schema.Name())
	assert.Equal(t, PropBool, schema.RootProp().Kind())

	events := schema.Events()
	require.Len(t, events, 1)
	assert.Equal(t, TopicSchemaCreated, events[0].Topic)
}

func TestSchemaAddAndGetPopulatedConfig(t *testing.T) {
	now := time.Now()
	def := StringValue("default")
	rootProp, err := NewStringProp(true, &def, nil, "")
	require.NoError(t, err)

	schema, err := CreateSchema(mustID(t, "schema-01"), "Schema 01", rootProp, now)
	require.NoError(t, err)
	schema.Events() // drain creation event

	configID := mustID(t, "config-01")
	require.NoError(t, schema.AddConfig(configID, "Config 01", NullValue(), nil, now))

	config, err := schema.GetConfig(configID, NewAccess(UnknownId(), UnknownId(), now), nil, now)
	require.NoError(t, err)
	assert.Equal(t, "Config 01", config.Name())
	assert.True(t, config.Data().IsNull())

	populated := schema.PopulateConfig(config)
	str, ok := populated.String()
	require.True(t, ok)
	assert.Equal(t, "default", str)

	events := schema.Events()
	var topics []string
	for _, e := range events {
		topics = append(topics, e.Topic)
	}
	assert.Contains(t, topics, TopicConfigCreated)
	assert.Contains(t, topics, TopicConfigAccessed)
}

func TestSchemaAddConfigRejectsInvalidData(t *testing.T) {
	now := time.Now()
	min, max := 1.0, 5.0
	interval, err := NewInterval(&min, &max)
	require.NoError(t, err)
	numProp, err := NewIntProp(true, nil, nil, &interval, false)
	require.NoError(t, err)

	schema, err := CreateSchema(mustID(t, "schema-01"), "Schema 01", numProp, now)
	require.NoError(t, err)

	err = schema.AddConfig(mustID(t, "config-01"), "Bad", IntValue(9), nil, now)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidConfig))
}

func TestSchemaChangeRootPropInvalidatesConfigs(t *testing.T) {
	now := time.Now()
	min, max := 1.0, 10.0
	interval, err := NewInterval(&min, &max)
	require.NoError(t, err)
	numProp, err := NewIntProp(true, nil, nil, &interval, false)
	require.NoError(t, err)

	schema, err := CreateSchema(mustID(t, "schema-01"), "Schema 01", numProp, now)
	require.NoError(t, err)
	require.NoError(t, schema.AddConfig(mustID(t, "config-01"), "C", IntValue(5), nil, now))

	config, err := schema.GetConfig(mustID(t, "config-01"), NewAccess(UnknownId(), UnknownId(), now), nil, now)
	require.NoError(t, err)
	assert.True(t, config.IsValid())

	newMin, newMax := 8.0, 10.0
	newInterval, err := NewInterval(&newMin, &newMax)
	require.NoError(t, err)
	newProp, err := NewIntProp(true, nil, nil, &newInterval, false)
	require.NoError(t, err)

	require.NoError(t, schema.ChangeRootProp(newProp, now))

	config = schema.Configs()["config-01"]
	assert.False(t, config.IsValid())
}

func TestSchemaDeleteRefusesNonEmptyConfigs(t *testing.T) {
	now := time.Now()
	boolProp, err := NewBoolProp(true, nil)
	require.NoError(t, err)

	schema, err := CreateSchema(mustID(t, "schema-01"), "Schema 01", boolProp, now)
	require.NoError(t, err)
	require.NoError(t, schema.AddConfig(mustID(t, "config-01"), "C", BoolValue(true), nil, now))

	err = schema.Delete(now)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeSchemaContainsConfig))

	require.NoError(t, schema.DeleteConfig(mustID(t, "config-01"), nil, now))
	require.NoError(t, schema.Delete(now))
	assert.True(t, schema.Timestamps().IsDeleted())
}
