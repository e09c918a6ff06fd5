package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// PropKind tags the variant held by a Prop, mirroring Value's Kind but with
// no Null variant: every concrete Prop is Bool/Int/Float/String/Array/Object.
type PropKind string

const (
	PropBool   PropKind = "bool"
	PropInt    PropKind = "int"
	PropFloat  PropKind = "float"
	PropString PropKind = "string"
	PropArray  PropKind = "array"
	PropObject PropKind = "object"
)

// Prop is a recursive property descriptor: a node in a schema's property
// tree describing the shape and constraints of a Value at that position.
type Prop struct {
	kind          PropKind
	required      bool
	defaultValue  *Value
	allowedValues []Value
	interval      *Interval
	regex         string
	split         bool
	item          *Prop          // Array
	props         map[string]Prop // Object
	propOrder     []string
}

func matchKind(v Value, k Kind) error {
	if v.Kind() != k {
		return NewError(CodeMismatchedKinds, fmt.Sprintf("expected %s, found %s", k, v.Kind()))
	}
	return nil
}

// NewBoolProp builds a Bool Prop.
func NewBoolProp(required bool, defaultValue *Value) (Prop, error) {
	if defaultValue != nil {
		if err := matchKind(*defaultValue, KindBool); err != nil {
			return Prop{}, err
		}
	}
	return Prop{kind: PropBool, required: required, defaultValue: defaultValue}, nil
}

// NewIntProp builds an Int Prop.
func NewIntProp(required bool, defaultValue *Value, allowedValues []Value, interval *Interval, split bool) (Prop, error) {
	if defaultValue != nil {
		if err := matchKind(*defaultValue, KindInt); err != nil {
			return Prop{}, err
		}
	}
	for _, v := range allowedValues {
		if err := matchKind(v, KindInt); err != nil {
			return Prop{}, err
		}
	}
	return Prop{kind: PropInt, required: required, defaultValue: defaultValue, allowedValues: allowedValues, interval: interval, split: split}, nil
}

// NewFloatProp builds a Float Prop.
func NewFloatProp(required bool, defaultValue *Value, allowedValues []Value, interval *Interval, split bool) (Prop, error) {
	if defaultValue != nil {
		if err := matchKind(*defaultValue, KindFloat); err != nil {
			return Prop{}, err
		}
	}
	for _, v := range allowedValues {
		if err := matchKind(v, KindFloat); err != nil {
			return Prop{}, err
		}
	}
	return Prop{kind: PropFloat, required: required, defaultValue: defaultValue, allowedValues: allowedValues, interval: interval, split: split}, nil
}

// NewStringProp builds a String Prop. regex, if non-empty, must compile.
func NewStringProp(required bool, defaultValue *Value, allowedValues []Value, regex string) (Prop, error) {
	if defaultValue != nil {
		if err := matchKind(*defaultValue, KindString); err != nil {
			return Prop{}, err
		}
	}
	for _, v := range allowedValues {
		if err := matchKind(v, KindString); err != nil {
			return Prop{}, err
		}
	}
	if regex != "" {
		if _, err := regexp.Compile(regex); err != nil {
			return Prop{}, WrapError(CodeSerde, "invalid regex", err)
		}
	}
	return Prop{kind: PropString, required: required, defaultValue: defaultValue, allowedValues: allowedValues, regex: regex}, nil
}

// NewArrayProp builds an Array Prop wrapping a single, exclusively-owned
// inner Prop.
func NewArrayProp(item Prop) Prop {
	return Prop{kind: PropArray, item: &item}
}

// NewObjectProp builds an Object Prop. keys fixes iteration/validation
// order (stabilizes serialization); any key in props missing from keys is
// appended, sorted, for determinism.
func NewObjectProp(props map[string]Prop, keys []string) Prop {
	ordered := make([]string, 0, len(props))
	seen := make(map[string]bool, len(props))
	for _, k := range keys {
		if _, ok := props[k]; ok && !seen[k] {
			ordered = append(ordered, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range props {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	ordered = append(ordered, rest...)
	cp := make(map[string]Prop, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return Prop{kind: PropObject, props: cp, propOrder: ordered}
}

func (p Prop) Kind() PropKind { return p.kind }

// IsRequired reports whether a Null value at this node is rejected absent a
// default. Array/Object are always "required": nullability is decided by
// their container (a scalar leaf), not by the collection itself.
func (p Prop) IsRequired() bool {
	switch p.kind {
	case PropBool, PropInt, PropFloat, PropString:
		return p.required
	default:
		return true
	}
}

func (p Prop) DefaultValue() *Value { return p.defaultValue }

func (p Prop) AllowedValues() []Value { return p.allowedValues }

func (p Prop) Interval() *Interval { return p.interval }

func (p Prop) Regex() string { return p.regex }

func (p Prop) Split() bool {
	switch p.kind {
	case PropInt, PropFloat:
		return p.split
	default:
		return false
	}
}

func (p Prop) Item() *Prop { return p.item }

func (p Prop) Props() (map[string]Prop, []string) { return p.props, p.propOrder }

// Validate walks value and the Prop tree in parallel, seeded with root key
// "$", and returns the accumulated Diff.
func (p Prop) Validate(value Value) Diff {
	return p.validateWithKey(value, "$")
}

func (p Prop) validateWithKey(value Value, key string) Diff {
	diff := NewDiff(key)

	if value.IsNull() {
		if p.IsRequired() && p.defaultValue == nil {
			diff.Add(ReasonNullValue, nil)
		}
		return diff
	}

	if len(p.allowedValues) > 0 {
		allowed := false
		for _, v := range p.allowedValues {
			if v.Equal(value) {
				allowed = true
				break
			}
		}
		if !allowed {
			diff.Add(ReasonNotAllowedValue, nil)
		}
	}

	switch p.kind {
	case PropBool:
		if value.Kind() != KindBool {
			diff.Add(ReasonNotABool, nil)
		}
	case PropInt:
		if num, ok := value.Int(); ok {
			if p.interval != nil && !p.interval.Validate(float64(num)) {
				diff.Add(ReasonNotInInterval, nil)
			}
		} else {
			diff.Add(ReasonNotAnInt, nil)
		}
	case PropFloat:
		if num, ok := value.Float(); ok {
			if p.interval != nil && !p.interval.Validate(num) {
				diff.Add(ReasonNotInInterval, nil)
			}
		} else {
			diff.Add(ReasonNotAFloat, nil)
		}
	case PropString:
		if str, ok := value.String(); ok {
			if p.regex != "" {
				if re, err := regexp.Compile(p.regex); err == nil && !re.MatchString(str) {
					diff.Add(ReasonUnmatchedRegex, nil)
				}
			}
		} else {
			diff.Add(ReasonNotAString, nil)
		}
	case PropArray:
		if items, ok := value.Array(); ok {
			for i, item := range items {
				diff.Merge(p.item.validateWithKey(item, strconv.Itoa(i)))
			}
		} else {
			diff.Add(ReasonNotAnArray, nil)
		}
	case PropObject:
		if object, _, ok := value.Object(); ok {
			for k, item := range object {
				if prop, ok := p.props[k]; ok {
					diff.Merge(prop.validateWithKey(item, k))
				} else {
					kk := k
					diff.Add(ReasonUnknownProp, &kk)
				}
			}
			for k := range p.props {
				if _, ok := object[k]; !ok {
					kk := k
					diff.Add(ReasonMissingProp, &kk)
				}
			}
		} else {
			diff.Add(ReasonNotAnObject, nil)
		}
	}

	return diff
}

// Populate returns a new Value with Null leaves filled from defaults and
// split=true numeric leaves divided by splitBy. Keys present in the Prop
// tree but absent from value are never synthesized; only Null leaves that
// are already present are filled.
func (p Prop) Populate(value Value, splitBy int64) Value {
	switch p.kind {
	case PropArray:
		if items, ok := value.Array(); ok {
			out := make([]Value, len(items))
			for i, item := range items {
				out[i] = p.item.Populate(item, splitBy)
			}
			return ArrayValue(out)
		}
	case PropObject:
		if object, keys, ok := value.Object(); ok {
			out := make(map[string]Value, len(object))
			for k, item := range object {
				if prop, ok := p.props[k]; ok {
					out[k] = prop.Populate(item, splitBy)
				} else {
					out[k] = item
				}
			}
			return ObjectValue(out, keys)
		}
	}

	v := value
	if v.IsNull() && p.defaultValue != nil {
		v = *p.defaultValue
	}

	if splitBy > 1 && p.Split() {
		if num, ok := v.Int(); ok {
			return IntValue(num / splitBy)
		}
		if num, ok := v.Float(); ok {
			return FloatValue(num / float64(splitBy))
		}
	}

	return v
}
