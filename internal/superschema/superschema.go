package superschema

import (
	"context"
	"fmt"

	introspection "github.com/BigSchema/stitch/internal/introspection"
	language "github.com/BigSchema/stitch/internal/language"
	result "github.com/BigSchema/stitch/internal/result"
)

// SuperSchema is the merged union of a set of subschemas. It is immutable
// after construction and may be shared by any number of composers.
type SuperSchema struct {
	Subschemas []*Subschema

	// Schema is the merged schema object.
	Schema *language.Schema

	// SubschemaSets maps type name and field name to the ordered set of
	// subschemas able to resolve that field.
	SubschemaSets map[string]map[string][]*Subschema

	rootTypes     map[language.Operation]*language.Definition
	introspection *Subschema
}

// New merges the given subschemas into a SuperSchema.
func New(subschemas ...*Subschema) (*SuperSchema, error) {
	if len(subschemas) == 0 {
		return nil, fmt.Errorf("at least one subschema is required")
	}

	ss := &SuperSchema{
		Subschemas: subschemas,
		Schema: &language.Schema{
			Types:         map[string]*language.Definition{},
			PossibleTypes: map[string][]*language.Definition{},
			Implements:    map[string][]*language.Definition{},
			Directives:    map[string]*language.DirectiveDefinition{},
		},
		SubschemaSets: map[string]map[string][]*Subschema{},
		rootTypes:     map[language.Operation]*language.Definition{},
	}

	for _, name := range []string{"Int", "Float", "String", "Boolean", "ID"} {
		ss.Schema.Types[name] = &language.Definition{Kind: language.Scalar, Name: name, BuiltIn: true}
	}

	contributors := map[string][]*Subschema{}

	for _, sub := range subschemas {
		if sub.Schema == nil {
			return nil, fmt.Errorf("subschema %q has no schema", sub.Name)
		}
		if sub.Executor == nil {
			return nil, fmt.Errorf("subschema %q has no executor", sub.Name)
		}
		roots := map[string]bool{}
		for op, root := range map[language.Operation]*language.Definition{
			language.Query:        sub.Schema.Query,
			language.Mutation:     sub.Schema.Mutation,
			language.Subscription: sub.Schema.Subscription,
		} {
			if root == nil {
				continue
			}
			roots[root.Name] = true
			merged := ss.rootTypes[op]
			if merged == nil {
				merged = newDefinition(root)
				ss.rootTypes[op] = merged
			}
			mergeComposite(merged, root)
			ss.recordFields(merged.Name, root, sub)
			contributors[merged.Name] = appendSubschema(contributors[merged.Name], sub)
		}

		for name, def := range sub.Schema.Types {
			if def.BuiltIn || isIntrospectionType(name) || roots[name] {
				continue
			}
			merged := ss.Schema.Types[name]
			if merged == nil {
				merged = newDefinition(def)
				ss.Schema.Types[name] = merged
			}
			if merged.Kind != def.Kind {
				continue
			}
			mergeDefinition(merged, def)
			switch def.Kind {
			case language.Object, language.Interface:
				ss.recordFields(name, def, sub)
			}
			if isComposite(def.Kind) {
				contributors[name] = appendSubschema(contributors[name], sub)
			}
		}

		for name, dir := range sub.Schema.Directives {
			mergeDirective(ss.Schema.Directives, name, dir)
		}
	}

	for op, root := range ss.rootTypes {
		ss.Schema.Types[root.Name] = root
		switch op {
		case language.Query:
			ss.Schema.Query = root
		case language.Mutation:
			ss.Schema.Mutation = root
		case language.Subscription:
			ss.Schema.Subscription = root
		}
	}

	ss.buildTypeRelations()

	// __typename resolves wherever the type itself does.
	for name, subs := range contributors {
		if def := ss.Schema.Types[name]; def == nil || !isComposite(def.Kind) {
			continue
		}
		ss.fieldSet(name)["__typename"] = subs
	}

	ss.bindIntrospection()
	return ss, nil
}

func (ss *SuperSchema) recordFields(typeName string, def *language.Definition, sub *Subschema) {
	set := ss.fieldSet(typeName)
	for _, fd := range def.Fields {
		set[fd.Name] = appendSubschema(set[fd.Name], sub)
	}
}

func (ss *SuperSchema) fieldSet(typeName string) map[string][]*Subschema {
	set := ss.SubschemaSets[typeName]
	if set == nil {
		set = map[string][]*Subschema{}
		ss.SubschemaSets[typeName] = set
	}
	return set
}

func (ss *SuperSchema) buildTypeRelations() {
	for _, def := range ss.Schema.Types {
		switch def.Kind {
		case language.Object, language.Interface:
			for _, ifaceName := range def.Interfaces {
				iface := ss.Schema.Types[ifaceName]
				if iface == nil {
					continue
				}
				ss.Schema.Implements[def.Name] = append(ss.Schema.Implements[def.Name], iface)
				if def.Kind == language.Object {
					ss.Schema.PossibleTypes[ifaceName] = append(ss.Schema.PossibleTypes[ifaceName], def)
				}
			}
			if def.Kind == language.Object {
				ss.Schema.PossibleTypes[def.Name] = append(ss.Schema.PossibleTypes[def.Name], def)
			}
		case language.Union:
			for _, memberName := range def.Types {
				member := ss.Schema.Types[memberName]
				if member == nil {
					continue
				}
				ss.Schema.PossibleTypes[def.Name] = append(ss.Schema.PossibleTypes[def.Name], member)
				ss.Schema.Implements[memberName] = append(ss.Schema.Implements[memberName], def)
			}
		}
	}
}

// bindIntrospection attaches an internal subschema that answers __schema and
// __type against the merged schema itself.
func (ss *SuperSchema) bindIntrospection() {
	query := ss.Schema.Query
	if query == nil {
		return
	}
	sch := ss.Schema
	intro := &Subschema{
		Name:   "__introspection",
		Schema: sch,
		Executor: func(ctx context.Context, req Request) (*result.Result, error) {
			data, errs := introspection.Execute(ctx, sch, req.Document, req.Variables)
			return &result.Result{Data: data, Errors: errs}, nil
		},
	}
	ss.introspection = intro
	set := ss.fieldSet(query.Name)
	set["__schema"] = []*Subschema{intro}
	set["__type"] = []*Subschema{intro}

	for _, def := range introspection.Definitions() {
		ss.Schema.Types[def.Name] = def
		if def.Kind == language.Object || def.Kind == language.Interface {
			ss.recordFields(def.Name, def, intro)
			ss.fieldSet(def.Name)["__typename"] = []*Subschema{intro}
		}
	}
}

func appendSubschema(set []*Subschema, sub *Subschema) []*Subschema {
	for _, s := range set {
		if s == sub {
			return set
		}
	}
	return append(set, sub)
}

func isComposite(kind language.DefinitionKind) bool {
	return kind == language.Object || kind == language.Interface || kind == language.Union
}

func isIntrospectionType(name string) bool {
	return len(name) >= 2 && name[0] == '_' && name[1] == '_'
}

// newDefinition starts a merged definition with the name, kind, and
// description of the first occurrence.
func newDefinition(def *language.Definition) *language.Definition {
	return &language.Definition{
		Kind:        def.Kind,
		Name:        def.Name,
		Description: def.Description,
		Position:    def.Position,
	}
}

func mergeDefinition(dst, src *language.Definition) {
	switch src.Kind {
	case language.Scalar:
		// First definition wins; nothing further to merge.
	case language.Object, language.Interface, language.InputObject:
		mergeComposite(dst, src)
	case language.Union:
		for _, member := range src.Types {
			if !containsString(dst.Types, member) {
				dst.Types = append(dst.Types, member)
			}
		}
	case language.Enum:
		for _, ev := range src.EnumValues {
			if dst.EnumValues.ForName(ev.Name) == nil {
				dst.EnumValues = append(dst.EnumValues, ev)
			}
		}
	}
}

// mergeComposite unions fields (first definition wins on conflicts) and
// implemented interfaces.
func mergeComposite(dst, src *language.Definition) {
	for _, fd := range src.Fields {
		if dst.Fields.ForName(fd.Name) == nil {
			dst.Fields = append(dst.Fields, fd)
		}
	}
	for _, iface := range src.Interfaces {
		if !containsString(dst.Interfaces, iface) {
			dst.Interfaces = append(dst.Interfaces, iface)
		}
	}
}

func mergeDirective(dst map[string]*language.DirectiveDefinition, name string, dir *language.DirectiveDefinition) {
	merged := dst[name]
	if merged == nil {
		dst[name] = &language.DirectiveDefinition{
			Name:         dir.Name,
			Description:  dir.Description,
			Arguments:    append(language.ArgumentDefinitionList(nil), dir.Arguments...),
			Locations:    append([]language.DirectiveLocation(nil), dir.Locations...),
			IsRepeatable: dir.IsRepeatable,
			Position:     dir.Position,
		}
		return
	}
	for _, loc := range dir.Locations {
		found := false
		for _, have := range merged.Locations {
			if have == loc {
				found = true
				break
			}
		}
		if !found {
			merged.Locations = append(merged.Locations, loc)
		}
	}
	merged.IsRepeatable = merged.IsRepeatable || dir.IsRepeatable
	for _, arg := range dir.Arguments {
		if merged.Arguments.ForName(arg.Name) == nil {
			merged.Arguments = append(merged.Arguments, arg)
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
