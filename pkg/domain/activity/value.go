package activity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Value is one field of an activity record as returned by Garmin Connect.
// It is a closed sum type: String, Int, Float, Bool, Null, Object or List.
type Value interface {
	isValue()
}

type (
	// String is a JSON string.
	String string
	// Int is a JSON number without fractional part that fits in int64.
	Int int64
	// Float is any other JSON number.
	Float float64
	// Bool is a JSON boolean.
	Bool bool
	// Null is JSON null.
	Null struct{}
	// Object is a nested JSON object.
	Object map[string]Value
	// List is a JSON array.
	List []Value
)

func (String) isValue() {}
func (Int) isValue()    {}
func (Float) isValue()  {}
func (Bool) isValue()   {}
func (Null) isValue()   {}
func (Object) isValue() {}
func (List) isValue()   {}

// IsScalar reports whether v can be stored as a single attribute.
func IsScalar(v Value) bool {
	switch v.(type) {
	case String, Int, Float, Bool:
		return true
	default:
		return false
	}
}

// Native converts a scalar Value into the Go value stored in Firestore and
// emitted in JSON. Non-scalars return nil.
func Native(v Value) interface{} {
	switch t := v.(type) {
	case String:
		return string(t)
	case Int:
		return int64(t)
	case Float:
		return float64(t)
	case Bool:
		return bool(t)
	default:
		return nil
	}
}

// RawActivity is one activity exactly as listed by Garmin Connect.
type RawActivity map[string]Value

// UnmarshalJSON decodes a JSON object into tagged values.
func (r *RawActivity) UnmarshalJSON(data []byte) error {
	v, err := decodeValue(data)
	if err != nil {
		return err
	}
	obj, ok := v.(Object)
	if !ok {
		return fmt.Errorf("activity: expected JSON object, got %T", v)
	}
	*r = RawActivity(obj)
	return nil
}

// DecodeRawActivities decodes a JSON array of activities.
func DecodeRawActivities(r io.Reader) ([]RawActivity, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode activity list: %w", err)
	}

	activities := make([]RawActivity, 0, len(raw))
	for i, msg := range raw {
		var a RawActivity
		if err := a.UnmarshalJSON(msg); err != nil {
			return nil, fmt.Errorf("decode activity %d: %w", i, err)
		}
		activities = append(activities, a)
	}
	return activities, nil
}

func decodeValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("activity: %w", err)
	}
	return fromGeneric(generic)
}

func fromGeneric(v interface{}) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("activity: invalid number %q: %w", t, err)
		}
		return Float(f), nil
	case map[string]interface{}:
		obj := make(Object, len(t))
		for k, child := range t {
			cv, err := fromGeneric(child)
			if err != nil {
				return nil, err
			}
			obj[k] = cv
		}
		return obj, nil
	case []interface{}:
		list := make(List, 0, len(t))
		for _, child := range t {
			cv, err := fromGeneric(child)
			if err != nil {
				return nil, err
			}
			list = append(list, cv)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("activity: unsupported JSON value %T", v)
	}
}
