// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bej

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/saferwall/rde/dictionary"
	"github.com/saferwall/rde/nnint"
	"github.com/saferwall/rde/sflv"
)

// Errors returned while decoding; per §7 these never panic, and the partial
// JSON buffer is discarded by the caller on any of them.
var (
	ErrNotASet              = errors.New("bej: top-level element is not a Set")
	ErrContainerLength      = errors.New("bej: container byte count does not match its declared Length")
	ErrUnknownSelectorEntry = errors.New("bej: no dictionary entry for sequence number")
)

// Decoder unpacks a BEJ stream into a generic JSON value against a pair of
// dictionaries. A Decoder holds no mutable state beyond its call frame
// (§5); the same Decoder may drive multiple concurrent decodes.
type Decoder struct {
	schema     *dictionary.Reader
	annotBySeq map[uint16]dictionary.Row
}

// NewDecoder returns a Decoder driven by schema (major or error) and annot.
func NewDecoder(schema, annot *dictionary.Reader) (*Decoder, error) {
	annotEntries, err := annot.Entries()
	if err != nil {
		return nil, fmt.Errorf("bej: reading annotation dictionary: %w", err)
	}
	return &Decoder{
		schema:     schema,
		annotBySeq: dictionary.BySeq(annotEntries),
	}, nil
}

// DecodeJSON decodes a full BEJ stream and marshals the result to JSON.
func (d *Decoder) DecodeJSON(buf []byte, bindings map[uint64]string) ([]byte, error) {
	doc, err := d.Decode(buf, bindings)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// Decode unpacks a full BEJ stream (header + top-level Set) into a generic
// JSON value, substituting any deferred-binding string tokens from
// bindings (a PDR id -> URI table, see PDRMap.Bindings).
func (d *Decoder) Decode(buf []byte, bindings map[uint64]string) (map[string]interface{}, error) {
	if _, err := UnpackHeader(buf); err != nil {
		return nil, err
	}
	body := buf[HeaderSize:]

	elem, n, err := sflv.Unpack(body)
	if err != nil {
		return nil, err
	}
	if n != len(body) {
		return nil, fmt.Errorf("%w: trailing bytes after top-level Set", ErrContainerLength)
	}
	if elem.Format != sflv.FormatSet {
		return nil, ErrNotASet
	}

	entries, err := d.schema.Entries()
	if err != nil {
		return nil, fmt.Errorf("bej: reading schema dictionary: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("bej: empty schema dictionary")
	}
	root := entries[0]
	subset, err := d.schema.Subset(root.Offset.Value(), root.ChildCount)
	if err != nil {
		return nil, err
	}
	return d.decodeObject(elem.Value, subset, bindings)
}

// decodeObject reads SFLV elements from value until exhausted, dispatching
// each by its selector bit and sequence number against subset or the
// annotation dictionary (§4.J).
func (d *Decoder) decodeObject(value []byte, subset []dictionary.Row, bindings map[uint64]string) (map[string]interface{}, error) {
	bySeq := dictionary.BySeq(subset)
	obj := make(map[string]interface{})

	off := 0
	for off < len(value) {
		elem, n, err := sflv.Unpack(value[off:])
		if err != nil {
			return nil, err
		}
		off += n

		seq, sel := elem.Seq()

		if sel == sflv.SelectorAnnotation {
			annotRow, ok := d.annotBySeq[uint16(seq)]
			if !ok {
				return nil, fmt.Errorf("%w: annotation seq %d", ErrUnknownSelectorEntry, seq)
			}
			v, err := d.decodeValue(elem, annotRow, bindings)
			if err != nil {
				return nil, err
			}
			obj[annotRow.Name] = v
			continue
		}

		if elem.Format == sflv.FormatPropertyAnnotation {
			schemaRow, ok := bySeq[uint16(seq)]
			if !ok {
				return nil, fmt.Errorf("%w: property-annotation seq %d", ErrUnknownSelectorEntry, seq)
			}
			innerElem, n2, err := sflv.Unpack(elem.Value)
			if err != nil {
				return nil, err
			}
			if n2 != len(elem.Value) {
				return nil, fmt.Errorf("%w: PropertyAnnotation on %s", ErrContainerLength, schemaRow.Name)
			}
			innerSeq, innerSel := innerElem.Seq()
			if innerSel != sflv.SelectorAnnotation {
				return nil, fmt.Errorf("bej: PropertyAnnotation on %s does not wrap an annotation element", schemaRow.Name)
			}
			annotRow, ok := d.annotBySeq[uint16(innerSeq)]
			if !ok {
				return nil, fmt.Errorf("%w: annotation seq %d", ErrUnknownSelectorEntry, innerSeq)
			}
			v, err := d.decodeValue(innerElem, annotRow, bindings)
			if err != nil {
				return nil, err
			}
			obj[schemaRow.Name+annotRow.Name] = v
			continue
		}

		row, ok := bySeq[uint16(seq)]
		if !ok {
			return nil, fmt.Errorf("%w: seq %d", ErrUnknownSelectorEntry, seq)
		}
		v, err := d.decodeValue(elem, row, bindings)
		if err != nil {
			return nil, err
		}
		obj[row.Name] = v
	}

	if off != len(value) {
		return nil, ErrContainerLength
	}
	return obj, nil
}

// deferredBindingToken matches the "%M" or "%[LTPI]<n>[.<n>]" tokens a
// deferred-binding string may embed (§4.J).
var deferredBindingToken = regexp.MustCompile(`%M|%[LTPI][0-9]+(\.[0-9]+)?`)

func substituteBindings(s string, bindings map[uint64]string) string {
	return deferredBindingToken.ReplaceAllStringFunc(s, func(tok string) string {
		if tok == "%M" || tok[1] != 'L' {
			// "%M" and the %T/%P/%I families name bindings this codec never
			// produces itself; pass them through unresolved.
			return tok
		}
		id, err := strconv.ParseUint(tok[2:], 10, 64)
		if err != nil {
			return tok
		}
		if uri, ok := bindings[id]; ok {
			return uri
		}
		return tok
	})
}

// decodeValue unpacks elem's value per row's dictionary format.
func (d *Decoder) decodeValue(elem sflv.Element, row dictionary.Row, bindings map[uint64]string) (interface{}, error) {
	if elem.Format == sflv.FormatNull {
		return nil, nil
	}

	switch elem.Format {
	case sflv.FormatString:
		s, err := sflv.UnpackString(elem.Value)
		if err != nil {
			return nil, err
		}
		s = sflv.UnescapeString(s)
		if elem.Flags&sflv.FlagDeferredBinding != 0 {
			s = substituteBindings(s, bindings)
		}
		return s, nil

	case sflv.FormatInteger:
		n, err := sflv.UnpackInteger(elem.Value)
		if err != nil {
			return nil, err
		}
		return json.Number(strconv.FormatInt(n, 10)), nil

	case sflv.FormatBoolean:
		return sflv.UnpackBoolean(elem.Value)

	case sflv.FormatReal:
		r, err := sflv.UnpackReal(elem.Value)
		if err != nil {
			return nil, err
		}
		return json.Number(strconv.FormatFloat(r.Float64(), 'g', -1, 64)), nil

	case sflv.FormatEnum:
		seq, err := sflv.UnpackEnum(elem.Value)
		if err != nil {
			return nil, err
		}
		members, err := d.schema.Subset(row.Offset.Value(), row.ChildCount)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if uint64(m.Seq) == seq {
				return m.Name, nil
			}
		}
		return nil, fmt.Errorf("bej: enum seq %d on %s has no matching member", seq, row.Name)

	case sflv.FormatResourceLink:
		id, err := sflv.UnpackResourceLink(elem.Value)
		if err != nil {
			return nil, err
		}
		if uri, ok := bindings[id]; ok {
			return uri, nil
		}
		return nil, fmt.Errorf("bej: resource link pdr id %d on %s not present in bindings", id, row.Name)

	case sflv.FormatSet:
		childSubset, err := d.schema.Subset(row.Offset.Value(), row.ChildCount)
		if err != nil {
			return nil, err
		}
		return d.decodeObject(elem.Value, childSubset, bindings)

	case sflv.FormatArray:
		elemEntries, err := d.schema.Subset(row.Offset.Value(), 1)
		if err != nil {
			return nil, err
		}
		elemRow := elemEntries[0]

		count, n, err := nnint.Unpack(elem.Value)
		if err != nil {
			return nil, err
		}
		off := n
		arr := make([]interface{}, 0, count)
		for i := uint64(0); i < count; i++ {
			itemElem, n2, err := sflv.Unpack(elem.Value[off:])
			if err != nil {
				return nil, err
			}
			off += n2
			v, err := d.decodeValue(itemElem, elemRow, bindings)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if off != len(elem.Value) {
			return nil, fmt.Errorf("%w: Array %s", ErrContainerLength, row.Name)
		}
		return arr, nil

	default:
		return nil, fmt.Errorf("%w: %d on %s", ErrUnknownFormat, elem.Format, row.Name)
	}
}
