package compiler

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/hanpama/graphpager/internal/compose"
	"github.com/hanpama/graphpager/internal/language"
)

// toValue renders a Go argument as a GraphQL literal. onVar is called for
// every variable reference; a nil onVar rejects variables.
func toValue(v any, onVar func(*compose.VarRef) error) (*language.Value, error) {
	switch v := v.(type) {
	case nil:
		return &language.Value{Kind: language.NullValue, Raw: "null"}, nil
	case *compose.VarRef:
		if v == nil {
			return &language.Value{Kind: language.NullValue, Raw: "null"}, nil
		}
		if onVar == nil {
			return nil, fmt.Errorf("%w: variable $%s is not allowed here", ErrInvalidArgument, v.Name)
		}
		if err := onVar(v); err != nil {
			return nil, err
		}
		return &language.Value{Kind: language.Variable, Raw: v.Name}, nil
	case compose.EnumValue:
		return &language.Value{Kind: language.EnumValue, Raw: string(v)}, nil
	case string:
		return &language.Value{Kind: language.StringValue, Raw: v}, nil
	case bool:
		return &language.Value{Kind: language.BooleanValue, Raw: strconv.FormatBool(v)}, nil
	case time.Time:
		return &language.Value{Kind: language.StringValue, Raw: v.Format(time.RFC3339)}, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &language.Value{Kind: language.IntValue, Raw: strconv.FormatInt(rv.Int(), 10)}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &language.Value{Kind: language.IntValue, Raw: strconv.FormatUint(rv.Uint(), 10)}, nil
	case reflect.Float32, reflect.Float64:
		return &language.Value{Kind: language.FloatValue, Raw: strconv.FormatFloat(rv.Float(), 'g', -1, 64)}, nil
	case reflect.String:
		return &language.Value{Kind: language.StringValue, Raw: rv.String()}, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return toValue(nil, onVar)
		}
		return toValue(rv.Elem().Interface(), onVar)
	case reflect.Slice, reflect.Array:
		out := &language.Value{Kind: language.ListValue}
		for i := 0; i < rv.Len(); i++ {
			item, err := toValue(rv.Index(i).Interface(), onVar)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, &language.ChildValue{Value: item})
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		out := &language.Value{Kind: language.ObjectValue}
		for _, k := range keys {
			item, err := toValue(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface(), onVar)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, &language.ChildValue{Name: k, Value: item})
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidArgument, v)
}

func intValue(i int) *language.Value {
	return &language.Value{Kind: language.IntValue, Raw: strconv.Itoa(i)}
}

func variable(name string) *language.Value {
	return &language.Value{Kind: language.Variable, Raw: name}
}
