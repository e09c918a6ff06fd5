package domain

import (
	"encoding/json"
)

// schemaPayload is the "$schema" object carried by a scalar/array Prop's
// JSON encoding.
type schemaPayload struct {
	Kind          string      `json:"kind"`
	Required      bool        `json:"required"`
	DefaultValue  interface{} `json:"default_value,omitempty"`
	AllowedValues []interface{} `json:"allowed_values,omitempty"`
	Interval      *intervalDTO `json:"interval,omitempty"`
	Regex         string      `json:"regex,omitempty"`
	Split         bool        `json:"split,omitempty"`
}

type intervalDTO struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// PropToJSON renders a Prop tree to its external JSON form: a scalar/array
// Prop becomes an object carrying the reserved "$schema" key; an Object
// Prop becomes a plain nested JSON object; an Array Prop becomes a
// one-element JSON array.
func PropToJSON(p Prop) (interface{}, error) {
	switch p.kind {
	case PropObject:
		out := make(map[string]interface{}, len(p.props))
		for k, sub := range p.props {
			j, err := PropToJSON(sub)
			if err != nil {
				return nil, err
			}
			out[k] = j
		}
		return out, nil
	case PropArray:
		inner, err := PropToJSON(*p.item)
		if err != nil {
			return nil, err
		}
		return []interface{}{inner}, nil
	default:
		payload, err := propSchemaPayload(p)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"$schema": payload}, nil
	}
}

func propSchemaPayload(p Prop) (schemaPayload, error) {
	payload := schemaPayload{Kind: string(p.kind), Required: p.required}

	if p.defaultValue != nil {
		j, err := p.defaultValue.ToJSON()
		if err != nil {
			return payload, err
		}
		payload.DefaultValue = j
	}
	for _, v := range p.allowedValues {
		j, err := v.ToJSON()
		if err != nil {
			return payload, err
		}
		payload.AllowedValues = append(payload.AllowedValues, j)
	}
	if p.interval != nil {
		dto := &intervalDTO{}
		if min, ok := p.interval.Min(); ok {
			dto.Min = &min
		}
		if max, ok := p.interval.Max(); ok {
			dto.Max = &max
		}
		payload.Interval = dto
	}
	payload.Regex = p.regex
	payload.Split = p.split

	return payload, nil
}

// MarshalJSON implements json.Marshaler for Prop using PropToJSON.
func (p Prop) MarshalJSON() ([]byte, error) {
	j, err := PropToJSON(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

// PropFromJSON parses a Prop tree from its external JSON form (the decoded
// output of json.Unmarshal into interface{}).
func PropFromJSON(raw interface{}) (Prop, error) {
	switch t := raw.(type) {
	case []interface{}:
		if len(t) != 1 {
			return Prop{}, NewError(CodeInvalidArray, "array prop must have exactly one element")
		}
		item, err := PropFromJSON(t[0])
		if err != nil {
			return Prop{}, err
		}
		return NewArrayProp(item), nil
	case map[string]interface{}:
		if raw, ok := t["$schema"]; ok {
			return propFromSchemaPayload(raw)
		}
		props := make(map[string]Prop, len(t))
		keys := make([]string, 0, len(t))
		for k, v := range t {
			sub, err := PropFromJSON(v)
			if err != nil {
				return Prop{}, err
			}
			props[k] = sub
			keys = append(keys, k)
		}
		return NewObjectProp(props, keys), nil
	default:
		return Prop{}, NewError(CodeUnknownRootProp, "root prop must be an object or a one-element array")
	}
}

func propFromSchemaPayload(raw interface{}) (Prop, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return Prop{}, WrapError(CodeSerde, "invalid $schema payload", err)
	}
	var payload schemaPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Prop{}, WrapError(CodeSerde, "invalid $schema payload", err)
	}

	var defaultValue *Value
	if payload.DefaultValue != nil {
		v, err := ValueFromJSON(payload.DefaultValue)
		if err != nil {
			return Prop{}, err
		}
		defaultValue = &v
	}

	var allowedValues []Value
	for _, av := range payload.AllowedValues {
		v, err := ValueFromJSON(av)
		if err != nil {
			return Prop{}, err
		}
		allowedValues = append(allowedValues, v)
	}

	var interval *Interval
	if payload.Interval != nil {
		iv, err := NewInterval(payload.Interval.Min, payload.Interval.Max)
		if err != nil {
			return Prop{}, err
		}
		interval = &iv
	}

	switch PropKind(payload.Kind) {
	case PropBool:
		return NewBoolProp(payload.Required, defaultValue)
	case PropInt:
		return NewIntProp(payload.Required, defaultValue, allowedValues, interval, payload.Split)
	case PropFloat:
		return NewFloatProp(payload.Required, defaultValue, allowedValues, interval, payload.Split)
	case PropString:
		return NewStringProp(payload.Required, defaultValue, allowedValues, payload.Regex)
	default:
		return Prop{}, NewError(CodeSerde, "unknown prop kind: "+payload.Kind)
	}
}

func (p *Prop) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := PropFromJSON(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
