package superschema

import (
	"fmt"
	"strconv"

	language "github.com/BigSchema/stitch/internal/language"
	result "github.com/BigSchema/stitch/internal/result"
)

// DefaultMaxCoercionErrors bounds how many variable errors are collected
// before coercion aborts.
const DefaultMaxCoercionErrors = 50

// VariableOptions tunes variable coercion.
type VariableOptions struct {
	// MaxErrors caps the error list; 0 means DefaultMaxCoercionErrors.
	MaxErrors int
}

// GetVariableValues coerces raw variable inputs against the operation's
// variable definitions. On success the error list is empty. Required
// variables that are missing or explicitly null fail. Defaults apply when
// the name is absent from inputs. Unknown variable types are reported but
// do not abort the loop; exceeding MaxErrors does.
func (ss *SuperSchema) GetVariableValues(
	defs language.VariableDefinitionList,
	inputs map[string]any,
	opts *VariableOptions,
) (map[string]any, []*result.Error) {
	maxErrors := DefaultMaxCoercionErrors
	if opts != nil && opts.MaxErrors > 0 {
		maxErrors = opts.MaxErrors
	}

	coerced := make(map[string]any, len(defs))
	var errs []*result.Error
	for _, def := range defs {
		if len(errs) >= maxErrors {
			errs = append(errs, result.NewError(
				"Too many errors processing variables, error limit reached. Execution aborted.", nil))
			return nil, errs
		}

		varType := ss.Schema.Types[def.Type.Name()]
		if varType == nil || !isInputType(varType) {
			errs = append(errs, result.NewError(fmt.Sprintf(
				"Variable \"$%s\" expected value of type %q which cannot be used as an input type.",
				def.Variable, typeString(def.Type)), nil))
			continue
		}

		value, provided := inputs[def.Variable]
		if !provided {
			if def.DefaultValue != nil {
				coerced[def.Variable] = valueToGo(def.DefaultValue, nil)
			} else if def.Type.NonNull {
				errs = append(errs, result.NewError(fmt.Sprintf(
					"Variable \"$%s\" of required type %q was not provided.",
					def.Variable, typeString(def.Type)), nil))
			}
			continue
		}

		cv, err := ss.coerceInputValue(value, def.Type)
		if err != nil {
			errs = append(errs, result.NewError(fmt.Sprintf(
				"Variable \"$%s\" got invalid value: %s", def.Variable, err), nil))
			continue
		}
		coerced[def.Variable] = cv
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return coerced, nil
}

func isInputType(def *language.Definition) bool {
	switch def.Kind {
	case language.Scalar, language.Enum, language.InputObject:
		return true
	}
	return false
}

func typeString(t *language.Type) string { return t.String() }

func (ss *SuperSchema) coerceInputValue(value any, t *language.Type) (any, error) {
	if t.NonNull {
		if value == nil {
			return nil, fmt.Errorf("expected non-null value of type %q", typeString(t))
		}
		inner := language.Type{NamedType: t.NamedType, Elem: t.Elem}
		return ss.coerceInputValue(value, &inner)
	}
	if value == nil {
		return nil, nil
	}
	if t.Elem != nil {
		items, ok := value.([]any)
		if !ok {
			// A single value is accepted as a list of one.
			item, err := ss.coerceInputValue(value, t.Elem)
			if err != nil {
				return nil, err
			}
			return []any{item}, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := ss.coerceInputValue(item, t.Elem)
			if err != nil {
				return nil, fmt.Errorf("at index %d: %s", i, err)
			}
			out[i] = cv
		}
		return out, nil
	}

	def := ss.Schema.Types[t.NamedType]
	if def == nil {
		return nil, fmt.Errorf("unknown type %q", t.NamedType)
	}
	switch def.Kind {
	case language.Scalar:
		return coerceScalar(def.Name, value)
	case language.Enum:
		name, ok := value.(string)
		if !ok || def.EnumValues.ForName(name) == nil {
			return nil, fmt.Errorf("value %v is not a member of enum %q", value, def.Name)
		}
		return name, nil
	case language.InputObject:
		return ss.coerceInputObject(value, def)
	default:
		return nil, fmt.Errorf("type %q is not an input type", def.Name)
	}
}

func (ss *SuperSchema) coerceInputObject(value any, def *language.Definition) (any, error) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object value for input type %q, got %T", def.Name, value)
	}
	out := make(map[string]any, len(fields))
	for name, fv := range fields {
		fd := def.Fields.ForName(name)
		if fd == nil {
			return nil, fmt.Errorf("field %q is not defined on input type %q", name, def.Name)
		}
		cv, err := ss.coerceInputValue(fv, fd.Type)
		if err != nil {
			return nil, fmt.Errorf("at field %q: %s", name, err)
		}
		out[name] = cv
	}
	for _, fd := range def.Fields {
		if _, present := out[fd.Name]; present {
			continue
		}
		if fd.DefaultValue != nil {
			out[fd.Name] = valueToGo(fd.DefaultValue, nil)
		} else if fd.Type.NonNull {
			return nil, fmt.Errorf("required field %q of input type %q was not provided", fd.Name, def.Name)
		}
	}
	return out, nil
}

func coerceScalar(name string, value any) (any, error) {
	switch name {
	case "Int":
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
		}
		return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
	case "Float":
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
		return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
	case "String":
		if v, ok := value.(string); ok {
			return v, nil
		}
		return nil, fmt.Errorf("cannot coerce %v (%T) to String", value, value)
	case "Boolean":
		if v, ok := value.(bool); ok {
			return v, nil
		}
		return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", value, value)
	case "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case int:
			return strconv.Itoa(v), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			if v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10), nil
			}
		}
		return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
	default:
		// Custom scalars pass through untouched.
		return value, nil
	}
}

func valueToGo(value *language.Value, vars map[string]any) any {
	return language.ValueToGo(value, vars)
}
