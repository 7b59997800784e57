package world

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldType is the declared runtime type of a settable entity field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldBool
	FieldInt
)

// FieldSpec declares one settable field: its type and its accessors. The
// schema replaces inferring types from live values at mutation time; a
// directive naming a field not in the schema is rejected up front.
type FieldSpec struct {
	Type FieldType
	Get  func(*Entity) any
	Set  func(*Entity, any)
}

func strField(get func(*Entity) *string) FieldSpec {
	return FieldSpec{
		Type: FieldString,
		Get:  func(e *Entity) any { return *get(e) },
		Set: func(e *Entity, v any) {
			if s, ok := asString(v); ok {
				*get(e) = s
			}
		},
	}
}

func boolField(get func(*Entity) *bool) FieldSpec {
	return FieldSpec{
		Type: FieldBool,
		Get:  func(e *Entity) any { return *get(e) },
		Set: func(e *Entity, v any) {
			if b, ok := asBool(v); ok {
				*get(e) = b
			}
		},
	}
}

func intField(get func(*Entity) *int) FieldSpec {
	return FieldSpec{
		Type: FieldInt,
		Get:  func(e *Entity) any { return *get(e) },
		Set: func(e *Entity, v any) {
			if n, ok := asInt(v); ok {
				*get(e) = n
			}
		},
	}
}

// fieldSchema is the full set of directive-settable scalar fields. The
// exits and relationships attributes have dedicated merge semantics in
// ApplyStoryEvent and are deliberately absent here.
var fieldSchema = map[string]FieldSpec{
	"name":             strField(func(e *Entity) *string { return &e.Name }),
	"shortDescription": strField(func(e *Entity) *string { return &e.ShortDescription }),
	"description":      strField(func(e *Entity) *string { return &e.Description }),
	"color":            strField(func(e *Entity) *string { return &e.Color }),
	"inside":           strField(func(e *Entity) *string { return &e.Inside }),
	"invisible":        boolField(func(e *Entity) *bool { return &e.Invisible }),
	"visits":           intField(func(e *Entity) *int { return &e.Visits }),

	"pronouns":          strField(func(e *Entity) *string { return &e.Pronouns }),
	"profession":        strField(func(e *Entity) *string { return &e.Profession }),
	"personality":       strField(func(e *Entity) *string { return &e.Personality }),
	"age":               intField(func(e *Entity) *int { return &e.Age }),
	"runningScheduleId": strField(func(e *Entity) *string { return &e.RunningScheduleID }),
	"deferSchedule":     boolField(func(e *Entity) *bool { return &e.DeferSchedule }),

	"knowsName":            boolField(func(e *Entity) *bool { return &e.KnowsName }),
	"knowsPronouns":        boolField(func(e *Entity) *bool { return &e.KnowsPronouns }),
	"knowsProfession":      boolField(func(e *Entity) *bool { return &e.KnowsProfession }),
	"sharedSelf":           boolField(func(e *Entity) *bool { return &e.SharedSelf }),
	"sharedIntra":          boolField(func(e *Entity) *bool { return &e.SharedIntra }),
	"sharedDisassociation": boolField(func(e *Entity) *bool { return &e.SharedDisassociation }),
	"sharedAge":            boolField(func(e *Entity) *bool { return &e.SharedAge }),

	"mysteryState": {
		Type: FieldString,
		Get:  func(e *Entity) any { return string(e.MysteryState) },
		Set: func(e *Entity, v any) {
			if s, ok := asString(v); ok {
				e.MysteryState = MysteryState(s)
			}
		},
	},
	"resolution": strField(func(e *Entity) *string { return &e.Resolution }),
}

// FieldSpecFor looks up the schema entry for a field name.
func FieldSpecFor(name string) (FieldSpec, bool) {
	spec, ok := fieldSchema[name]
	return spec, ok
}

// CoerceField converts directive text to the declared type of the named
// field.
//
// Coercion is permissive: booleans accept true/false/yes/no in any case,
// integers accept surrounding whitespace, strings pass through trimmed.
// Returns an error when the field is unknown or the text does not fit.
func CoerceField(field, text string) (any, error) {
	spec, ok := fieldSchema[field]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", field)
	}
	text = strings.TrimSpace(text)

	switch spec.Type {
	case FieldBool:
		switch strings.ToLower(text) {
		case "true", "yes", "y", "1":
			return true, nil
		case "false", "no", "n", "0":
			return false, nil
		}
		return nil, fmt.Errorf("field %q: cannot coerce %q to bool", field, text)
	case FieldInt:
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("field %q: cannot coerce %q to number", field, text)
		}
		return n, nil
	default:
		return text, nil
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// asInt accepts both native ints and the float64 that JSON replay yields.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
