package executor

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hanpama/graphpager/internal/language"
)

// coerceVariableValues coerces caller variables against the declared
// variables of a document. Undeclared inputs are dropped.
func coerceVariableValues(defs language.VariableDefinitionList, variableValues map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(defs))
	for _, varDef := range defs {
		name := varDef.Variable
		t := varDef.Type
		val, ok := variableValues[name]
		if !ok {
			if varDef.DefaultValue != nil {
				val, _ = varDef.DefaultValue.Value(nil)
			} else if t.NonNull {
				return nil, fmt.Errorf("%w: $%s of type %s", ErrMissingVariable, name, t.String())
			} else {
				continue
			}
		}
		if val == nil && t.NonNull {
			return nil, fmt.Errorf("%w: $%s of type %s cannot be null", ErrVariableType, name, t.String())
		}
		cv, err := coerceValue(val, t)
		if err != nil {
			return nil, fmt.Errorf("%w: $%s of type %s: %v", ErrVariableType, name, t.String(), err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceValue coerces a value to the specified GraphQL type
func coerceValue(value any, t *language.Type) (any, error) {
	if t.NonNull && value == nil {
		return nil, fmt.Errorf("cannot provide null for non-null type")
	}
	if value == nil {
		return nil, nil
	}
	if t.Elem != nil {
		return coerceListValue(value, t.Elem)
	}
	switch t.NamedType {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	default:
		// Enums and custom scalars are sent as given.
		return value, nil
	}
}

func coerceListValue(value any, elem *language.Type) (any, error) {
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []int:
		for _, i := range v {
			items = append(items, i)
		}
	default:
		// Single value becomes a list of one
		items = []any{value}
	}
	out := make([]any, len(items))
	for i, item := range items {
		cv, err := coerceValue(item, elem)
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}

func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to int", value, value)
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to float", value, value)
}

func coerceToString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to string", value, value)
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to boolean", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}
