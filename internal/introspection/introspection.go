// Package introspection evaluates __schema and __type selections directly
// against a merged schema object, acting as the internal subschema bound to
// those fields on the Query root.
package introspection

import (
	"context"
	"fmt"
	"sort"

	language "github.com/BigSchema/stitch/internal/language"
	result "github.com/BigSchema/stitch/internal/result"
)

type walker struct {
	schema    *language.Schema
	variables map[string]any
	errors    []*result.Error
}

// Execute runs the document's single operation against the schema. Only the
// introspection meta-fields are resolvable; any other root field yields an
// error entry.
func Execute(ctx context.Context, sch *language.Schema, doc *language.QueryDocument, variables map[string]any) (map[string]any, []*result.Error) {
	var op *language.OperationDefinition
	if len(doc.Operations) > 0 {
		op = doc.Operations[0]
	}
	if op == nil {
		return nil, []*result.Error{result.NewError("operation not found", nil)}
	}
	w := &walker{schema: sch, variables: variables}
	data := map[string]any{}
	w.executeSelections(op.SelectionSet, "__RootValue", rootValue{}, data, nil)
	return data, w.errors
}

// rootValue is the source value for the Query root of the introspection
// subschema.
type rootValue struct{}

// inputValue adapts both argument definitions and input object fields to
// the __InputValue shape.
type inputValue struct {
	Name         string
	Description  string
	Type         *language.Type
	DefaultValue *language.Value
	Directives   language.DirectiveList
}

func (w *walker) addError(message string, path language.Path) {
	w.errors = append(w.errors, result.NewError(message, path))
}

func (w *walker) executeSelections(selections language.SelectionSet, typeName string, source any, out map[string]any, path language.Path) {
	for _, sel := range selections {
		switch s := sel.(type) {
		case *language.Field:
			key := s.Alias
			if key == "" {
				key = s.Name
			}
			fieldPath := append(append(language.Path{}, path...), language.PathName(key))
			out[key] = w.resolveField(typeName, source, s, fieldPath)
		case *language.InlineFragment:
			if s.TypeCondition == "" || s.TypeCondition == typeName {
				w.executeSelections(s.SelectionSet, typeName, source, out, path)
			}
		case *language.FragmentSpread:
			w.addError(fmt.Sprintf("fragment spread %q must be inlined before execution", s.Name), path)
		}
	}
}

func (w *walker) resolveField(typeName string, source any, field *language.Field, path language.Path) any {
	if field.Name == "__typename" {
		return typeName
	}
	args := w.argumentValues(field)
	value, ok := w.resolveValue(source, field.Name, args)
	if !ok {
		w.addError(fmt.Sprintf("Cannot query field %q on type %q", field.Name, typeName), path)
		return nil
	}
	return w.completeValue(value, field.SelectionSet, path)
}

func (w *walker) argumentValues(field *language.Field) map[string]any {
	if len(field.Arguments) == 0 {
		return nil
	}
	args := make(map[string]any, len(field.Arguments))
	for _, arg := range field.Arguments {
		args[arg.Name] = language.ValueToGo(arg.Value, w.variables)
	}
	return args
}

func (w *walker) completeValue(value any, selections language.SelectionSet, path language.Path) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string, bool, int, float64, *string:
		return v
	case []*language.Definition:
		return w.completeList(len(v), func(i int) any { return v[i] }, selections, path)
	case []*language.FieldDefinition:
		return w.completeList(len(v), func(i int) any { return v[i] }, selections, path)
	case []*inputValue:
		return w.completeList(len(v), func(i int) any { return v[i] }, selections, path)
	case []*language.EnumValueDefinition:
		return w.completeList(len(v), func(i int) any { return v[i] }, selections, path)
	case []*language.DirectiveDefinition:
		return w.completeList(len(v), func(i int) any { return v[i] }, selections, path)
	case []string:
		return w.completeList(len(v), func(i int) any { return v[i] }, selections, path)
	default:
		out := map[string]any{}
		w.executeSelections(selections, introTypeName(value), value, out, path)
		return out
	}
}

func (w *walker) completeList(n int, at func(int) any, selections language.SelectionSet, path language.Path) []any {
	out := make([]any, n)
	for i := 0; i < n; i++ {
		itemPath := append(append(language.Path{}, path...), language.PathIndex(i))
		out[i] = w.completeValue(at(i), selections, itemPath)
	}
	return out
}

func introTypeName(value any) string {
	switch value.(type) {
	case *language.Schema:
		return "__Schema"
	case *language.Definition, *language.Type:
		return "__Type"
	case *language.FieldDefinition:
		return "__Field"
	case *inputValue:
		return "__InputValue"
	case *language.EnumValueDefinition:
		return "__EnumValue"
	case *language.DirectiveDefinition:
		return "__Directive"
	default:
		return ""
	}
}

func (w *walker) resolveValue(source any, field string, args map[string]any) (any, bool) {
	switch src := source.(type) {
	case rootValue:
		switch field {
		case "__schema":
			return w.schema, true
		case "__type":
			name, _ := args["name"].(string)
			if def := w.schema.Types[name]; def != nil {
				return def, true
			}
			return nil, true
		}
	case *language.Schema:
		return resolveSchemaField(src, field)
	case *language.Definition:
		return w.resolveDefinitionField(src, field, args)
	case *language.Type:
		return w.resolveTypeRefField(src, field, args)
	case *language.FieldDefinition:
		return resolveFieldDefField(src, field, args)
	case *inputValue:
		return resolveInputValueField(src, field)
	case *language.EnumValueDefinition:
		return resolveEnumValueField(src, field)
	case *language.DirectiveDefinition:
		return resolveDirectiveField(src, field, args)
	}
	return nil, false
}

func resolveSchemaField(sch *language.Schema, field string) (any, bool) {
	switch field {
	case "types":
		names := make([]string, 0, len(sch.Types))
		for name := range sch.Types {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]*language.Definition, 0, len(names))
		for _, name := range names {
			out = append(out, sch.Types[name])
		}
		return out, true
	case "queryType":
		return defOrNil(sch.Query), true
	case "mutationType":
		return defOrNil(sch.Mutation), true
	case "subscriptionType":
		return defOrNil(sch.Subscription), true
	case "directives":
		names := make([]string, 0, len(sch.Directives))
		for name := range sch.Directives {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]*language.DirectiveDefinition, 0, len(names))
		for _, name := range names {
			out = append(out, sch.Directives[name])
		}
		return out, true
	case "description":
		return sch.Description, true
	}
	return nil, false
}

func (w *walker) resolveDefinitionField(def *language.Definition, field string, args map[string]any) (any, bool) {
	switch field {
	case "kind":
		return string(def.Kind), true
	case "name":
		return def.Name, true
	case "description":
		return def.Description, true
	case "specifiedByURL":
		if dir := def.Directives.ForName("specifiedBy"); dir != nil {
			if arg := dir.Arguments.ForName("url"); arg != nil {
				url := arg.Value.Raw
				return &url, true
			}
		}
		return (*string)(nil), true
	case "isOneOf":
		return def.Directives.ForName("oneOf") != nil, true
	case "fields":
		if def.Kind != language.Object && def.Kind != language.Interface {
			return nil, true
		}
		includeDeprecated := boolArg(args, "includeDeprecated")
		out := []*language.FieldDefinition{}
		for _, fd := range def.Fields {
			// Meta-fields such as __schema and __type are not listed.
			if len(fd.Name) >= 2 && fd.Name[:2] == "__" {
				continue
			}
			if !includeDeprecated && isDeprecated(fd.Directives) {
				continue
			}
			out = append(out, fd)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	case "interfaces":
		if def.Kind != language.Object && def.Kind != language.Interface {
			return nil, true
		}
		out := []*language.Definition{}
		for _, name := range def.Interfaces {
			if t := w.schema.Types[name]; t != nil {
				out = append(out, t)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	case "possibleTypes":
		if def.Kind != language.Interface && def.Kind != language.Union {
			return nil, true
		}
		out := append([]*language.Definition{}, w.schema.PossibleTypes[def.Name]...)
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	case "enumValues":
		if def.Kind != language.Enum {
			return nil, true
		}
		includeDeprecated := boolArg(args, "includeDeprecated")
		out := []*language.EnumValueDefinition{}
		for _, ev := range def.EnumValues {
			if !includeDeprecated && isDeprecated(ev.Directives) {
				continue
			}
			out = append(out, ev)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	case "inputFields":
		if def.Kind != language.InputObject {
			return nil, true
		}
		out := []*inputValue{}
		for _, fd := range def.Fields {
			out = append(out, &inputValue{
				Name:         fd.Name,
				Description:  fd.Description,
				Type:         fd.Type,
				DefaultValue: fd.DefaultValue,
				Directives:   fd.Directives,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	case "ofType":
		// Named types never wrap another type.
		return nil, true
	}
	return nil, false
}

func (w *walker) resolveTypeRefField(tr *language.Type, field string, args map[string]any) (any, bool) {
	switch field {
	case "kind":
		if tr.NonNull {
			return "NON_NULL", true
		}
		if tr.Elem != nil {
			return "LIST", true
		}
		if def := w.schema.Types[tr.NamedType]; def != nil {
			return string(def.Kind), true
		}
		return nil, true
	case "name":
		if tr.NonNull || tr.Elem != nil {
			return nil, true
		}
		return tr.NamedType, true
	case "ofType":
		if tr.NonNull {
			return &language.Type{NamedType: tr.NamedType, Elem: tr.Elem}, true
		}
		if tr.Elem != nil {
			return tr.Elem, true
		}
		return nil, true
	default:
		if !tr.NonNull && tr.Elem == nil {
			if def := w.schema.Types[tr.NamedType]; def != nil {
				return w.resolveDefinitionField(def, field, args)
			}
		}
		return nil, true
	}
}

func resolveFieldDefField(fd *language.FieldDefinition, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return fd.Name, true
	case "description":
		return fd.Description, true
	case "args":
		includeDeprecated := boolArg(args, "includeDeprecated")
		out := []*inputValue{}
		for _, arg := range fd.Arguments {
			if !includeDeprecated && isDeprecated(arg.Directives) {
				continue
			}
			out = append(out, &inputValue{
				Name:         arg.Name,
				Description:  arg.Description,
				Type:         arg.Type,
				DefaultValue: arg.DefaultValue,
				Directives:   arg.Directives,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	case "type":
		return fd.Type, true
	case "isDeprecated":
		return isDeprecated(fd.Directives), true
	case "deprecationReason":
		return deprecationReason(fd.Directives), true
	}
	return nil, false
}

func resolveInputValueField(iv *inputValue, field string) (any, bool) {
	switch field {
	case "name":
		return iv.Name, true
	case "description":
		return iv.Description, true
	case "type":
		return iv.Type, true
	case "defaultValue":
		if iv.DefaultValue == nil {
			return (*string)(nil), true
		}
		rendered := iv.DefaultValue.String()
		return &rendered, true
	case "isDeprecated":
		return isDeprecated(iv.Directives), true
	case "deprecationReason":
		return deprecationReason(iv.Directives), true
	}
	return nil, false
}

func resolveEnumValueField(ev *language.EnumValueDefinition, field string) (any, bool) {
	switch field {
	case "name":
		return ev.Name, true
	case "description":
		return ev.Description, true
	case "isDeprecated":
		return isDeprecated(ev.Directives), true
	case "deprecationReason":
		return deprecationReason(ev.Directives), true
	}
	return nil, false
}

func resolveDirectiveField(d *language.DirectiveDefinition, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		return d.Description, true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		out := make([]string, len(d.Locations))
		for i, loc := range d.Locations {
			out[i] = string(loc)
		}
		sort.Strings(out)
		return out, true
	case "args":
		includeDeprecated := boolArg(args, "includeDeprecated")
		out := []*inputValue{}
		for _, arg := range d.Arguments {
			if !includeDeprecated && isDeprecated(arg.Directives) {
				continue
			}
			out = append(out, &inputValue{
				Name:         arg.Name,
				Description:  arg.Description,
				Type:         arg.Type,
				DefaultValue: arg.DefaultValue,
				Directives:   arg.Directives,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, true
	}
	return nil, false
}

// defOrNil avoids typed-nil pointers leaking into value completion.
func defOrNil(def *language.Definition) any {
	if def == nil {
		return nil
	}
	return def
}

func isDeprecated(directives language.DirectiveList) bool {
	return directives.ForName("deprecated") != nil
}

func deprecationReason(directives language.DirectiveList) *string {
	dir := directives.ForName("deprecated")
	if dir == nil {
		return nil
	}
	reason := "No longer supported"
	if arg := dir.Arguments.ForName("reason"); arg != nil {
		reason = arg.Value.Raw
	}
	return &reason
}

func boolArg(args map[string]any, name string) bool {
	if args == nil {
		return false
	}
	b, _ := args[name].(bool)
	return b
}
