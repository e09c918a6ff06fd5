package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropValidate_RequiredAndDefaults(t *testing.T) {
	boolProp, err := NewBoolProp(true, nil)
	require.NoError(t, err)
	assert.True(t, boolProp.Validate(BoolValue(false)).IsEmpty())

	optionalInt, err := NewIntProp(false, nil, nil, nil, false)
	require.NoError(t, err)
	assert.True(t, optionalInt.Validate(NullValue()).IsEmpty())

	requiredInt, err := NewIntProp(true, nil, nil, nil, false)
	require.NoError(t, err)
	assert.False(t, requiredInt.Validate(NullValue()).IsEmpty())

	defVal := IntValue(32)
	requiredIntWithDefault, err := NewIntProp(true, &defVal, nil, nil, false)
	require.NoError(t, err)
	assert.True(t, requiredIntWithDefault.Validate(NullValue()).IsEmpty())

	requiredArray := NewArrayProp(requiredInt)
	assert.True(t, requiredArray.Validate(ArrayValue([]Value{IntValue(12)})).IsEmpty())
	assert.False(t, requiredArray.Validate(NullValue()).IsEmpty())

	optionalArray := NewArrayProp(optionalInt)
	assert.True(t, optionalArray.Validate(ArrayValue([]Value{NullValue()})).IsEmpty())
}

func TestPropValidate_NestedObject(t *testing.T) {
	dev := StringValue("dev")
	envProp, err := NewStringProp(true, &dev, []Value{StringValue("dev"), StringValue("stg"), StringValue("prod")}, "")
	require.NoError(t, err)

	min, max := 1.0, 5.0
	interval, err := NewInterval(&min, &max)
	require.NoError(t, err)
	numProp, err := NewIntProp(true, nil, nil, &interval, false)
	require.NoError(t, err)

	root := NewObjectProp(map[string]Prop{"env": envProp, "num": numProp}, []string{"env", "num"})

	valid := ObjectValue(map[string]Value{"env": StringValue("stg"), "num": IntValue(4)}, []string{"env", "num"})
	assert.True(t, root.Validate(valid).IsEmpty())

	badEnum := ObjectValue(map[string]Value{"env": StringValue("other"), "num": IntValue(4)}, []string{"env", "num"})
	diff := root.Validate(badEnum)
	assert.False(t, diff.IsEmpty())
	assert.Equal(t, []Reason{ReasonNotAllowedValue}, diff.Diffs()["$.env"])

	outOfRange := ObjectValue(map[string]Value{"env": StringValue("stg"), "num": IntValue(9)}, []string{"env", "num"})
	diff = root.Validate(outOfRange)
	assert.Equal(t, []Reason{ReasonNotInInterval}, diff.Diffs()["$.num"])

	missing := ObjectValue(map[string]Value{"env": StringValue("stg")}, []string{"env"})
	diff = root.Validate(missing)
	assert.Equal(t, []Reason{ReasonMissingProp}, diff.Diffs()["$.num"])

	unknown := ObjectValue(map[string]Value{
		"env": StringValue("stg"), "num": IntValue(4), "non_existing": IntValue(1),
	}, []string{"env", "num", "non_existing"})
	diff = root.Validate(unknown)
	assert.Equal(t, []Reason{ReasonUnknownProp}, diff.Diffs()["$.non_existing"])
}

func TestPropPopulate_SplitAndDefaults(t *testing.T) {
	def := IntValue(12)
	workers, err := NewIntProp(false, &def, nil, nil, true)
	require.NoError(t, err)

	root := NewObjectProp(map[string]Prop{"workers": workers}, []string{"workers"})
	data := ObjectValue(map[string]Value{"workers": NullValue()}, []string{"workers"})

	populated := root.Populate(data, 2)
	obj, _, ok := populated.Object()
	require.True(t, ok)
	num, ok := obj["workers"].Int()
	require.True(t, ok)
	assert.Equal(t, int64(6), num)
}

func TestPropPopulate_AbsentKeysNotSynthesized(t *testing.T) {
	def := StringValue("default")
	strProp, err := NewStringProp(true, &def, nil, "")
	require.NoError(t, err)

	root := NewObjectProp(map[string]Prop{"name": strProp}, []string{"name"})
	empty := ObjectValue(map[string]Value{}, nil)

	populated := root.Populate(empty, 1)
	obj, _, ok := populated.Object()
	require.True(t, ok)
	_, present := obj["name"]
	assert.False(t, present, "absent keys must not be synthesized by populate")
}

func TestPropJSONRoundTrip(t *testing.T) {
	min, max := 1.0, 5.0
	interval, err := NewInterval(&min, &max)
	require.NoError(t, err)
	numProp, err := NewIntProp(true, nil, []Value{IntValue(1), IntValue(2)}, &interval, true)
	require.NoError(t, err)

	root := NewObjectProp(map[string]Prop{"num": numProp}, []string{"num"})

	j, err := PropToJSON(root)
	require.NoError(t, err)

	parsed, err := PropFromJSON(j)
	require.NoError(t, err)

	props, _ := parsed.Props()
	got := props["num"]
	assert.Equal(t, PropInt, got.Kind())
	assert.True(t, got.IsRequired())
	assert.True(t, got.Split())
	gotMin, _ := got.Interval().Min()
	assert.Equal(t, 1.0, gotMin)
}

func TestArrayPropJSONEncodesAsOneElementArray(t *testing.T) {
	item, err := NewIntProp(true, nil, nil, nil, false)
	require.NoError(t, err)
	arr := NewArrayProp(item)

	j, err := PropToJSON(arr)
	require.NoError(t, err)

	list, ok := j.([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestPropFromJSON_InvalidArrayLength(t *testing.T) {
	_, err := PropFromJSON([]interface{}{map[string]interface{}{}, map[string]interface{}{}})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidArray))
}
