// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bej

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/saferwall/rde/dictionary"
	"github.com/saferwall/rde/nnint"
	"github.com/saferwall/rde/sflv"
)

// Errors the encoder returns; per §7 these never panic or propagate past
// the top-level Encode call.
var (
	ErrMissingDictionaryEntry = errors.New("bej: no dictionary entry for JSON key")
	ErrTypeMismatch           = errors.New("bej: JSON value does not match dictionary format")
	ErrUnknownFormat          = errors.New("bej: unrecognized dictionary format")
	ErrEnumValueNotFound      = errors.New("bej: value is not a member of the dictionary enum")
	ErrNotNullable            = errors.New("bej: null value for a non-nullable property")
)

// Encoder packs a JSON document into a BEJ stream against a pair of
// dictionaries. A new Encoder, and a new PDRMap, must be used per encode
// (§5): neither is safe to share across concurrent encodes.
type Encoder struct {
	schema      *dictionary.Reader
	annotByName map[string]dictionary.Row
	pdr         *PDRMap
	strict      bool
}

// NewEncoder returns an Encoder driven by schema (major or error) and
// annot, starting with a fresh, non-strict PDR map.
func NewEncoder(schema, annot *dictionary.Reader) (*Encoder, error) {
	annotEntries, err := annot.Entries()
	if err != nil {
		return nil, fmt.Errorf("bej: reading annotation dictionary: %w", err)
	}
	return &Encoder{
		schema:      schema,
		annotByName: dictionary.ByName(annotEntries),
		pdr:         NewPDRMap(),
	}, nil
}

// WithPDRMap switches the Encoder to strict mode seeded from an existing
// URI->id table (§4.I: "is_strict = true whenever a caller-provided PDR map
// exists"). Call it before EncodeJSON.
func (e *Encoder) WithPDRMap(seed map[string]uint64) *Encoder {
	e.pdr = NewStrictPDRMap(seed)
	e.strict = true
	return e
}

// PDRMap returns a snapshot of the URI->id table accumulated by the most
// recent encode.
func (e *Encoder) PDRMap() map[string]uint64 {
	return e.pdr.Snapshot()
}

// EncodeJSON decodes data as a JSON object and encodes it to a full BEJ
// stream (header + top-level Set), using json.Number so large integers
// round-trip exactly through the Integer format.
func (e *Encoder) EncodeJSON(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("bej: malformed JSON input: %w", err)
	}
	return e.Encode(doc)
}

// Encode packs doc (already decoded, with json.Number for numeric leaves)
// into a full BEJ stream.
func (e *Encoder) Encode(doc map[string]interface{}) ([]byte, error) {
	entries, err := e.schema.Entries()
	if err != nil {
		return nil, fmt.Errorf("bej: reading schema dictionary: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("bej: empty schema dictionary")
	}
	root := entries[0]
	subset, err := e.schema.Subset(root.Offset.Value(), root.ChildCount)
	if err != nil {
		return nil, err
	}

	value, err := e.encodeObject(doc, subset)
	if err != nil {
		return nil, err
	}

	body := sflv.Pack(nil, 0, sflv.SelectorMajor, sflv.FormatSet, 0, value)
	h := Header{Version: DefaultVersion, Class: SchemaClassMajor}
	return append(h.Pack(), body...), nil
}

// encodeObject packs every key of obj against subset, in sorted key order
// so that encoding the same document with the same PDR map twice produces
// identical bytes (§8 "PDR-map idempotence").
func (e *Encoder) encodeObject(obj map[string]interface{}, subset []dictionary.Row) ([]byte, error) {
	byName := dictionary.ByName(subset)
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var value []byte
	for _, key := range keys {
		packed, err := e.encodeKey(key, obj[key], byName)
		if err != nil {
			return nil, err
		}
		value = append(value, packed...)
	}
	return value, nil
}

// encodeKey dispatches one JSON object key, handling the "schema_prop" vs
// "schema_prop@Namespace.Annot" forms (§4.I step 1-3).
func (e *Encoder) encodeKey(key string, v interface{}, byName map[string]dictionary.Row) ([]byte, error) {
	schemaProp, annotPart, isAnnot := splitAnnotationKey(key)
	if !isAnnot {
		row, ok := byName[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingDictionaryEntry, key)
		}
		format, flags, payload, err := e.encodeValue(v, row)
		if err != nil {
			return nil, err
		}
		return sflv.Pack(nil, uint64(row.Seq), sflv.SelectorMajor, format, flags, payload), nil
	}

	annotRow, ok := e.annotByName["@"+annotPart]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingDictionaryEntry, key)
	}

	format, flags, payload, err := e.encodeAnnotationValue(annotPart, v, annotRow)
	if err != nil {
		return nil, err
	}

	if schemaProp == "" {
		// Top-level annotation: no PropertyAnnotation wrapper (§4.I step 1,
		// sflv.FlagTopLevelAnnotation).
		return sflv.Pack(nil, uint64(annotRow.Seq), sflv.SelectorAnnotation, format, flags|sflv.FlagTopLevelAnnotation, payload), nil
	}

	schemaRow, ok := byName[schemaProp]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingDictionaryEntry, schemaProp)
	}
	inner := sflv.Pack(nil, uint64(annotRow.Seq), sflv.SelectorAnnotation, format, flags, payload)
	return sflv.Pack(nil, uint64(schemaRow.Seq), sflv.SelectorMajor, sflv.FormatPropertyAnnotation, 0, inner), nil
}

// encodeAnnotationValue is encodeValue plus the "@odata.id" PDR special
// case (§4.I last bullet).
func (e *Encoder) encodeAnnotationValue(annotPart string, v interface{}, row dictionary.Row) (sflv.Format, uint8, []byte, error) {
	if annotPart == "odata.id" {
		uri, ok := v.(string)
		if !ok {
			return 0, 0, nil, fmt.Errorf("%w: @odata.id must be a string", ErrTypeMismatch)
		}
		prefix, frag := splitFragment(uri)
		id, err := e.pdr.Resolve(prefix)
		if err != nil {
			return 0, 0, nil, err
		}
		token := fmt.Sprintf("%%L%d%s", id, frag)
		return sflv.FormatString, sflv.FlagDeferredBinding, sflv.PackString(token), nil
	}
	return e.encodeValue(v, row)
}

// encodeValue packs v against row's dictionary format, returning the
// format/flags/payload a caller assembles into an SFLV element.
func (e *Encoder) encodeValue(v interface{}, row dictionary.Row) (sflv.Format, uint8, []byte, error) {
	if v == nil {
		if row.Flags&dictionary.FlagNullable == 0 {
			return 0, 0, nil, fmt.Errorf("%w: %s", ErrNotNullable, row.Name)
		}
		return sflv.FormatNull, 0, nil, nil
	}

	switch row.Format {
	case sflv.FormatString, sflv.FormatChoice:
		s, ok := v.(string)
		if !ok {
			return 0, 0, nil, fmt.Errorf("%w: %s expects a string", ErrTypeMismatch, row.Name)
		}
		return sflv.FormatString, 0, sflv.PackString(sflv.EscapeString(s)), nil

	case sflv.FormatInteger:
		n, err := toInt64(v)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("%w: %s: %v", ErrTypeMismatch, row.Name, err)
		}
		return sflv.FormatInteger, 0, sflv.PackInteger(n), nil

	case sflv.FormatBoolean:
		b, ok := v.(bool)
		if !ok {
			return 0, 0, nil, fmt.Errorf("%w: %s expects a boolean", ErrTypeMismatch, row.Name)
		}
		return sflv.FormatBoolean, 0, sflv.PackBoolean(b), nil

	case sflv.FormatReal:
		f, err := toFloat64(v)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("%w: %s: %v", ErrTypeMismatch, row.Name, err)
		}
		return sflv.FormatReal, 0, sflv.PackReal(sflv.RealFromFloat64(f)), nil

	case sflv.FormatEnum:
		name, ok := v.(string)
		if !ok {
			return 0, 0, nil, fmt.Errorf("%w: %s expects a string enum value", ErrTypeMismatch, row.Name)
		}
		members, err := e.schema.Subset(row.Offset.Value(), row.ChildCount)
		if err != nil {
			return 0, 0, nil, err
		}
		for _, m := range members {
			if m.Name == name {
				return sflv.FormatEnum, 0, sflv.PackEnum(uint64(m.Seq)), nil
			}
		}
		return 0, 0, nil, fmt.Errorf("%w: %q on %s", ErrEnumValueNotFound, name, row.Name)

	case sflv.FormatResourceLink:
		uri, ok := v.(string)
		if !ok {
			return 0, 0, nil, fmt.Errorf("%w: %s expects a string resource link", ErrTypeMismatch, row.Name)
		}
		id, err := e.pdr.Resolve(uri)
		if err != nil {
			return 0, 0, nil, err
		}
		return sflv.FormatResourceLink, 0, sflv.PackResourceLink(id), nil

	case sflv.FormatSet:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return 0, 0, nil, fmt.Errorf("%w: %s expects a JSON object", ErrTypeMismatch, row.Name)
		}
		childSubset, err := e.schema.Subset(row.Offset.Value(), row.ChildCount)
		if err != nil {
			return 0, 0, nil, err
		}
		payload, err := e.encodeObject(obj, childSubset)
		if err != nil {
			return 0, 0, nil, err
		}
		return sflv.FormatSet, 0, payload, nil

	case sflv.FormatArray:
		arr, ok := v.([]interface{})
		if !ok {
			return 0, 0, nil, fmt.Errorf("%w: %s expects a JSON array", ErrTypeMismatch, row.Name)
		}
		elemEntries, err := e.schema.Subset(row.Offset.Value(), 1)
		if err != nil {
			return 0, 0, nil, err
		}
		elemRow := elemEntries[0]

		payload := nnint.Pack(nil, uint64(len(arr)))
		for i, item := range arr {
			itemRow := elemRow
			itemRow.Seq = uint16(i) // array index as Seq, §4.I step 4 Array bullet
			format, flags, itemPayload, err := e.encodeValue(item, itemRow)
			if err != nil {
				return 0, 0, nil, err
			}
			payload = append(payload, sflv.Pack(nil, uint64(itemRow.Seq), sflv.SelectorMajor, format, flags, itemPayload)...)
		}
		return sflv.FormatArray, 0, payload, nil

	default:
		return 0, 0, nil, fmt.Errorf("%w: %d", ErrUnknownFormat, row.Format)
	}
}

// splitAnnotationKey splits a JSON key on its first '@', returning the
// schema-property prefix (possibly empty, for a top-level annotation like
// "@odata.id") and the annotation name suffix.
func splitAnnotationKey(key string) (schemaProp, annotPart string, isAnnot bool) {
	idx := strings.IndexByte(key, '@')
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}

// splitFragment splits a URI on its first '#', returning the prefix and the
// fragment including the leading '#' (or "" if none).
func splitFragment(uri string) (prefix, frag string) {
	idx := strings.IndexByte(uri, '#')
	if idx < 0 {
		return uri, ""
	}
	return uri[:idx], uri[idx:]
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
