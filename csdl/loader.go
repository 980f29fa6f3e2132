// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package csdl

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/saferwall/rde/dictionary"
	"github.com/saferwall/rde/entity"
	"github.com/saferwall/rde/internal/rdlog"
	"github.com/saferwall/rde/sflv"
)

// SchemaError reports a fatal schema-integrity failure. Source names the
// document for a malformed EDMX document and the qualified name of the
// entity being built for an unresolvable type or base type; no CSDL line
// number is recorded.
type SchemaError struct {
	Source string // document name, or qualified name of the entity being built
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("csdl: %s: %s", e.Source, e.Detail)
}

// FileProvider resolves an edmx:Reference Uri to a document buffer. The
// loader never touches a filesystem or network itself (§1 scope); the CLI
// layer supplies a FileProvider backed by the configured search
// directories.
type FileProvider interface {
	// Resolve returns the bytes for uri, a display name for error messages,
	// and ok=false if the reference could not be located (a non-fatal
	// condition per §7).
	Resolve(uri string) (name string, data []byte, ok bool)
}

// typeKind classifies a named CSDL type once every schema has been indexed.
type typeKind int

const (
	kindUnknown typeKind = iota
	kindEntityOrComplex
	kindEnum
	kindTypeDef
)

type typeInfo struct {
	kind           typeKind
	structuredType *edmStructuredType
	enumType       *edmEnumType
	typeDef        *edmTypeDefinition
}

// aliasMap maps an edmx:Include/Schema Alias to the namespace it stands for,
// scoped to the document that declared it.
type aliasMap map[string]string

// Loader indexes CSDL namespaces and populates an entity.Repository. A new
// Loader must be created per build (§5); it owns the namespace index as
// exclusive state.
type Loader struct {
	repo *entity.Repository

	schemas     map[string]*edmSchema // namespace -> schema, first writer wins
	types       map[string]typeInfo   // "Namespace.Type" -> classification
	schemaAlias map[string]aliasMap   // namespace -> the alias table of the document that defined it
	resolved    map[string]bool       // Uris already processed, to avoid cycles

	log *rdlog.Component
}

// NewLoader returns a Loader that populates repo.
func NewLoader(repo *entity.Repository) *Loader {
	return &Loader{
		repo:        repo,
		schemas:     make(map[string]*edmSchema),
		types:       make(map[string]typeInfo),
		schemaAlias: make(map[string]aliasMap),
		resolved:    make(map[string]bool),
		log:         rdlog.Named("csdl"),
	}
}

// oasisCoreTypePrefixes are Uri prefixes that the loader silently ignores
// when unresolved, since they name well-known OASIS core vocabularies that
// contribute no Redfish-relevant types (§4.E.2).
var oasisCoreTypePrefixes = []string{
	"https://docs.oasis-open.org/odata/odata/",
	"http://docs.oasis-open.org/odata/odata/",
}

func looksLikeOASISCoreType(uri string) bool {
	for _, p := range oasisCoreTypePrefixes {
		if strings.HasPrefix(uri, p) {
			return true
		}
	}
	return false
}

// LoadAll parses rootData (named rootName) and recursively follows its
// edmx:Reference Uris through provider, indexing every schema it finds.
// Call Build afterward to populate the entity repository.
func (l *Loader) LoadAll(rootName string, rootData []byte, provider FileProvider) error {
	if err := l.loadDocument(rootName, rootData, provider); err != nil {
		return err
	}
	return nil
}

func (l *Loader) loadDocument(name string, data []byte, provider FileProvider) error {
	var doc edmx
	if err := xml.Unmarshal(data, &doc); err != nil {
		return &SchemaError{Source: name, Detail: fmt.Sprintf("malformed EDMX: %v", err)}
	}

	// Real Redfish CSDL references cross-namespace types through an
	// edmx:Include's Alias, not its literal Namespace, and a schema may
	// also address its own types through its own Alias attribute. Build
	// one alias table per document and share it across every schema the
	// document defines.
	docAlias := make(aliasMap)
	for _, ref := range doc.References {
		for _, inc := range ref.Includes {
			if inc.Alias != "" && inc.Namespace != "" {
				docAlias[inc.Alias] = inc.Namespace
			}
		}
	}
	for i := range doc.DataServices.Schemas {
		s := &doc.DataServices.Schemas[i]
		if s.Alias != "" {
			docAlias[s.Alias] = s.Namespace
		}
	}

	for i := range doc.DataServices.Schemas {
		s := &doc.DataServices.Schemas[i]
		if _, exists := l.schemas[s.Namespace]; exists {
			continue // first writer wins (§4.E.1)
		}
		l.schemas[s.Namespace] = s
		l.indexTypes(s)
		l.schemaAlias[s.Namespace] = docAlias
	}

	for _, ref := range doc.References {
		if l.resolved[ref.Uri] {
			continue
		}
		l.resolved[ref.Uri] = true

		refName, refData, ok := provider.Resolve(ref.Uri)
		if !ok {
			if !looksLikeOASISCoreType(ref.Uri) {
				l.log.Warnf("could not resolve reference %q from %s", ref.Uri, name)
			}
			continue
		}
		if err := l.loadDocument(refName, refData, provider); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) indexTypes(s *edmSchema) {
	for i := range s.EntityTypes {
		t := &s.EntityTypes[i]
		l.types[s.Namespace+"."+t.Name] = typeInfo{kind: kindEntityOrComplex, structuredType: t}
	}
	for i := range s.ComplexTypes {
		t := &s.ComplexTypes[i]
		l.types[s.Namespace+"."+t.Name] = typeInfo{kind: kindEntityOrComplex, structuredType: t}
	}
	for i := range s.EnumTypes {
		t := &s.EnumTypes[i]
		l.types[s.Namespace+"."+t.Name] = typeInfo{kind: kindEnum, enumType: t}
	}
	for i := range s.TypeDefinitions {
		t := &s.TypeDefinitions[i]
		l.types[s.Namespace+"."+t.Name] = typeInfo{kind: kindTypeDef, typeDef: t}
	}
}

// Build walks every indexed schema and populates the entity repository
// (§4.E.3-8). Call it once, after LoadAll has finished indexing every
// reachable schema.
func (l *Loader) Build() error {
	for namespace, s := range l.schemas {
		for i := range s.EntityTypes {
			if err := l.buildStructuredType(namespace, &s.EntityTypes[i]); err != nil {
				return err
			}
		}
		for i := range s.ComplexTypes {
			if err := l.buildStructuredType(namespace, &s.ComplexTypes[i]); err != nil {
				return err
			}
		}
		for i := range s.EnumTypes {
			l.buildEnumType(namespace, &s.EnumTypes[i])
		}
		for i := range s.Actions {
			if err := l.buildAction(namespace, &s.Actions[i]); err != nil {
				return err
			}
		}
		for i := range s.Terms {
			l.buildTerm(namespace, &s.Terms[i])
		}
	}
	l.repo.AssignSequences()
	return nil
}

func (l *Loader) buildStructuredType(namespace string, t *edmStructuredType) error {
	if t.isAbstract() {
		return nil
	}
	qname := stripVersion(namespace + "." + t.Name)
	e := l.repo.Set(qname)

	if t.BaseType != "" {
		if err := l.collectBaseProperties(qname, namespace, e, t.BaseType, make(map[string]bool)); err != nil {
			return err
		}
	}

	for i := range t.Properties {
		p, err := l.resolveProperty(qname, namespace, t.Properties[i].Name, t.Properties[i].Type,
			t.Properties[i].Nullable, t.Properties[i].Annotations, false)
		if err != nil {
			return err
		}
		e.AddProperty(p)
	}
	for i := range t.NavigationProperties {
		np := t.NavigationProperties[i]
		p, err := l.resolveProperty(qname, namespace, np.Name, np.Type, np.Nullable, np.Annotations, true)
		if err != nil {
			return err
		}
		e.AddProperty(p)
	}
	return nil
}

// collectBaseProperties recurses through BaseType chains, adding base
// properties to e before the entity's own local properties are added, so
// Entity.AddProperty's first-wins rule keeps the base-type definition
// (§4.E.3, §3 invariant). visiting guards against a malformed BaseType cycle.
// namespace is the alias-resolution context baseType was written in.
func (l *Loader) collectBaseProperties(qname, namespace string, e *entity.Entity, baseType string, visiting map[string]bool) error {
	baseName, info, ok := l.resolveTypeName(namespace, baseType)
	if visiting[baseName] {
		return nil
	}
	visiting[baseName] = true

	if !ok || info.kind != kindEntityOrComplex {
		return &SchemaError{Source: qname, Detail: fmt.Sprintf("base type %q not found", baseType)}
	}
	base := info.structuredType
	baseNamespace := namespaceOf(baseName)

	if base.BaseType != "" {
		if err := l.collectBaseProperties(qname, baseNamespace, e, base.BaseType, visiting); err != nil {
			return err
		}
	}
	for i := range base.Properties {
		p, err := l.resolveProperty(qname, baseNamespace, base.Properties[i].Name, base.Properties[i].Type,
			base.Properties[i].Nullable, base.Properties[i].Annotations, false)
		if err != nil {
			return err
		}
		e.AddProperty(p)
	}
	for i := range base.NavigationProperties {
		np := base.NavigationProperties[i]
		p, err := l.resolveProperty(qname, baseNamespace, np.Name, np.Type, np.Nullable, np.Annotations, true)
		if err != nil {
			return err
		}
		e.AddProperty(p)
	}
	return nil
}

// resolveProperty turns one CSDL Property/NavigationProperty declaration
// into an entity.Property, per the mapping rules of §4.E.4. namespace is the
// alias-resolution context typeName was written in.
func (l *Loader) resolveProperty(ownerQName, namespace, name, typeName, nullable string, anns []edmAnnotation, isNav bool) (entity.Property, error) {
	p := entity.Property{
		Name: name,
	}
	if isNullable(nullable) {
		p.Flags |= dictionary.FlagNullable
	}
	if perm := permissionFlag(anns); perm == "Read" {
		p.Flags |= dictionary.FlagReadOnly
	}

	elemType := typeName
	if isCollection(typeName) {
		p.IsArray = true
		elemType = collectionElement(typeName)
		if isNav && !hasAutoExpand(anns) {
			p.AutoExpandRef = true
		}
	}

	format, ref, err := l.classifyType(ownerQName, namespace, elemType)
	if err != nil {
		return entity.Property{}, err
	}
	p.Format = format
	p.Ref = ref
	return p, nil
}

// resolveTypeName looks typeName up directly in the namespace index first,
// falling back to alias substitution using namespace's document alias table
// (§4.E.2): "Resource.Status" only resolves once "Resource" is known to
// stand for "Resource.v1_0_0" in the schema that referenced it. The direct
// lookup runs first so an already fully-qualified name (e.g.
// "Drive.v1_0_0.DriveBase") is never mangled by a same-named alias.
func (l *Loader) resolveTypeName(namespace, typeName string) (qname string, info typeInfo, ok bool) {
	if info, ok = l.types[typeName]; ok {
		return typeName, info, true
	}
	if aliases := l.schemaAlias[namespace]; aliases != nil {
		if idx := strings.IndexByte(typeName, '.'); idx > 0 {
			if real, known := aliases[typeName[:idx]]; known {
				aliased := real + typeName[idx:]
				if info, ok = l.types[aliased]; ok {
					return aliased, info, true
				}
			}
		}
	}
	return typeName, typeInfo{}, false
}

// namespaceOf returns the namespace portion of a fully qualified
// "Namespace.Type" name (everything but the last dot segment).
func namespaceOf(qualifiedName string) string {
	idx := strings.LastIndexByte(qualifiedName, '.')
	if idx < 0 {
		return qualifiedName
	}
	return qualifiedName[:idx]
}

// classifyType resolves a (possibly Edm.*) type name to a BEJ format and,
// for reference formats, the qualified entity name it points at. namespace
// is the alias-resolution context typeName was written in.
func (l *Loader) classifyType(ownerQName, namespace, typeName string) (sflv.Format, string, error) {
	if strings.HasPrefix(typeName, "Edm.") {
		return edmPrimitiveFormat(typeName), "", nil
	}

	qname, info, ok := l.resolveTypeName(namespace, typeName)
	if !ok {
		return 0, "", &SchemaError{Source: ownerQName, Detail: fmt.Sprintf("unresolvable type reference %q", typeName)}
	}

	switch info.kind {
	case kindEntityOrComplex:
		return sflv.FormatSet, stripVersion(qname), nil
	case kindEnum:
		return sflv.FormatEnum, stripVersion(qname), nil
	case kindTypeDef:
		return l.classifyType(ownerQName, namespaceOf(qname), info.typeDef.UnderlyingType)
	default:
		return 0, "", &SchemaError{Source: ownerQName, Detail: fmt.Sprintf("unresolvable type reference %q", typeName)}
	}
}

func edmPrimitiveFormat(t string) sflv.Format {
	switch t {
	case "Edm.String", "Edm.Guid", "Edm.DateTimeOffset", "Edm.Duration", "Edm.TimeOfDay":
		return sflv.FormatString
	case "Edm.SByte", "Edm.Int16", "Edm.Int32", "Edm.Int64", "Edm.Decimal":
		return sflv.FormatInteger
	case "Edm.Boolean":
		return sflv.FormatBoolean
	case "Edm.Double", "Edm.Single":
		return sflv.FormatReal
	case "Edm.PrimitiveType":
		return sflv.FormatChoice
	default:
		return sflv.FormatString
	}
}

func (l *Loader) buildEnumType(namespace string, t *edmEnumType) {
	qname := stripVersion(namespace + "." + t.Name)
	e := l.repo.Enum(qname)
	for _, m := range t.Members {
		e.AddEnumMember(revisionAdded(m.Annotations), m.Name)
	}
}

// buildAction implements §4.E.6: the first (binding) parameter identifies
// the host entity, which gains a Set-typed property named after the
// action; the remaining parameters become properties of a new entity
// "Namespace.ActionName".
func (l *Loader) buildAction(namespace string, a *edmAction) error {
	if len(a.Parameters) == 0 {
		return nil
	}
	binding := a.Parameters[0]
	_, hostRef, err := l.classifyType(namespace+"."+a.Name, namespace, stripCollectionIfAny(binding.Type))
	if err != nil {
		return err
	}

	actionEntityName := namespace + "." + a.Name
	host := l.repo.Set(hostRef)
	host.AddProperty(entity.Property{
		Name:   a.Name,
		Format: sflv.FormatSet,
		Ref:    actionEntityName,
	})

	actionEntity := l.repo.Set(actionEntityName)
	for _, param := range a.Parameters[1:] {
		format, ref, err := l.classifyType(actionEntityName, namespace, stripCollectionIfAny(param.Type))
		if err != nil {
			return err
		}
		actionEntity.AddProperty(entity.Property{
			Name:    param.Name,
			Format:  format,
			Ref:     ref,
			IsArray: isCollection(param.Type),
		})
	}
	return nil
}

// buildTerm implements §4.E.7: Terms under a schema collect into an entity
// named after the term's (possibly aliased) schema namespace.
func (l *Loader) buildTerm(namespace string, t *edmTerm) {
	entityNamespace := namespace
	if namespace == "RedfishExtensions" {
		entityNamespace = "Redfish"
	}
	qname := entityNamespace
	e := l.repo.Set(qname)
	format, ref, err := l.classifyType(qname, namespace, t.Type)
	if err != nil {
		// A Term whose Type cannot yet be resolved is not a hard failure:
		// annotation vocabularies commonly reference external primitives.
		format, ref = sflv.FormatString, ""
	}
	e.AddProperty(entity.Property{Name: t.Name, Format: format, Ref: ref})
}

func isCollection(t string) bool {
	return strings.HasPrefix(t, "Collection(") && strings.HasSuffix(t, ")")
}

func collectionElement(t string) string {
	if !isCollection(t) {
		return t
	}
	return t[len("Collection(") : len(t)-1]
}

func stripCollectionIfAny(t string) string {
	if isCollection(t) {
		return collectionElement(t)
	}
	return t
}

// stripVersion drops a version namespace segment ("Drive.v1_7_0.Drive" ->
// "Drive.Drive"), the way §4.E.4 requires for Collection(T) element types
// and reference targets, so dictionary sub-trees are shared across minor
// schema revisions that only ever add, never remove, properties.
func stripVersion(qualifiedName string) string {
	parts := strings.Split(qualifiedName, ".")
	if len(parts) < 3 {
		return qualifiedName
	}
	mid := parts[len(parts)-2]
	if looksLikeVersionSegment(mid) {
		return parts[0] + "." + parts[len(parts)-1]
	}
	return qualifiedName
}

func looksLikeVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r != '_' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// EntityNames returns every entity the repository currently knows about,
// letting a caller resolve generate_dictionaries' ExplicitEntities override
// (SPEC_FULL.md "ExplicitEntities override") before calling builder.Build.
func (l *Loader) EntityNames() []string {
	return l.repo.Names()
}
