package language

import "strconv"

// ValueToGo converts an AST value into a plain Go value, substituting
// variables from vars when present.
func ValueToGo(value *Value, vars map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case Variable:
		if vars == nil {
			return nil
		}
		return vars[value.Raw]
	case IntValue:
		iv, _ := strconv.Atoi(value.Raw)
		return iv
	case FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case StringValue, BlockValue:
		return value.Raw
	case BooleanValue:
		return value.Raw == "true"
	case NullValue:
		return nil
	case EnumValue:
		return value.Raw
	case ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = ValueToGo(c.Value, vars)
		}
		return out
	case ObjectValue:
		m := make(map[string]any, len(value.Children))
		for _, f := range value.Children {
			m[f.Name] = ValueToGo(f.Value, vars)
		}
		return m
	default:
		return nil
	}
}
