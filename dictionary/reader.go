// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dictionary

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/saferwall/rde/nnint"
	"github.com/saferwall/rde/sflv"
)

// Errors returned while reading a binary dictionary buffer.
var (
	ErrOutsideBoundary = errors.New("dictionary: read outside buffer boundary")
	ErrBadVersionTag   = errors.New("dictionary: unexpected VersionTag")
)

// Reader exposes a read-only cursor over a parsed binary dictionary
// buffer, mirroring how the teacher's File type wraps a byte slice with
// bounds-checked accessors.
type Reader struct {
	data   []byte
	Header Header
}

// NewReader parses the fixed header of data and returns a Reader
// positioned to read entries and names out of it.
func NewReader(data []byte) (*Reader, error) {
	if len(data) < HeaderSize {
		return nil, ErrOutsideBoundary
	}
	h := Header{
		VersionTag:      data[0],
		DictionaryFlags: data[1],
		EntryCount:      binary.LittleEndian.Uint16(data[2:4]),
		SchemaVersion:   binary.LittleEndian.Uint32(data[4:8]),
		DictionarySize:  binary.LittleEndian.Uint32(data[8:12]),
	}
	if h.VersionTag != VersionTag {
		return nil, ErrBadVersionTag
	}
	if int(h.DictionarySize) > len(data) {
		return nil, ErrOutsideBoundary
	}
	return &Reader{data: data, Header: h}, nil
}

// entryAt decodes the fixed entry record at byte offset off.
func (r *Reader) entryAt(off uint32) (Row, error) {
	if uint64(off)+EntrySize > uint64(len(r.data)) {
		return Row{}, ErrOutsideBoundary
	}
	e := r.data[off : off+EntrySize]

	format := sflv.Format(e[0] >> 4)
	flags := e[0] & 0x0F
	seq := binary.LittleEndian.Uint16(e[1:3])
	childOffset := binary.LittleEndian.Uint16(e[3:5])
	childCount := binary.LittleEndian.Uint16(e[5:7])
	nameLen := e[7]
	nameOffset := binary.LittleEndian.Uint16(e[8:10])

	name, err := r.readName(uint32(nameOffset), int(nameLen))
	if err != nil {
		return Row{}, err
	}

	row := Row{
		Seq:    seq,
		Format: format,
		Flags:  flags,
		Name:   name,
	}
	if row.IsContainerFormat() {
		row.Offset = Resolved(uint32(childOffset))
		if format == sflv.FormatArray {
			row.ChildCount = 1
		} else {
			row.ChildCount = int(childCount)
		}
	}
	return row, nil
}

func (r *Reader) readName(offset uint32, length int) (string, error) {
	if uint64(offset)+uint64(length) > uint64(len(r.data)) {
		return "", ErrOutsideBoundary
	}
	return string(r.data[offset : offset+uint32(length)]), nil
}

// EntryCount returns the number of entries in the dictionary.
func (r *Reader) EntryCount() int { return int(r.Header.EntryCount) }

// Entries returns every row in file order (index 0 .. EntryCount-1).
func (r *Reader) Entries() ([]Row, error) {
	rows := make([]Row, r.Header.EntryCount)
	for i := range rows {
		row, err := r.entryAt(RowByteOffset(i))
		if err != nil {
			return nil, fmt.Errorf("dictionary: entry %d: %w", i, err)
		}
		rows[i] = row
	}
	return rows, nil
}

// Subset reads childCount consecutive entries starting at byte offset
// offset, the (offset, child_count) pair a container row's ChildPointerOffset
// and ChildCount describe (§4.C).
func (r *Reader) Subset(offset uint32, childCount int) ([]Row, error) {
	rows := make([]Row, childCount)
	off := offset
	for i := 0; i < childCount; i++ {
		row, err := r.entryAt(off)
		if err != nil {
			return nil, fmt.Errorf("dictionary: sub-tree entry %d at offset %d: %w", i, off, err)
		}
		rows[i] = row
		off += EntrySize
	}
	return rows, nil
}

// ByName indexes rows by property name, for encoder lookups.
func ByName(rows []Row) map[string]Row {
	m := make(map[string]Row, len(rows))
	for _, r := range rows {
		m[r.Name] = r
	}
	return m
}

// BySeq indexes rows by sequence number, for decoder lookups.
func BySeq(rows []Row) map[uint16]Row {
	m := make(map[uint16]Row, len(rows))
	for _, r := range rows {
		m[r.Seq] = r
	}
	return m
}

// Copyright returns the trailing copyright string, if any, following the
// name heap's terminating NUL.
func (r *Reader) Copyright() (string, error) {
	// The name heap runs from the end of the entry table to the last name's
	// NUL terminator; rather than re-walk it, scan forward from the end of
	// the entry table for the first standalone NUL followed by either the
	// end of the dictionary or a copyright length nnint.
	start := RowByteOffset(int(r.Header.EntryCount))
	end := int(r.Header.DictionarySize)
	if start > uint32(end) {
		return "", ErrOutsideBoundary
	}
	// Find the terminating NUL byte for the whole dictionary: one NUL with
	// no preceding content belonging to a name. We locate it by finding the
	// last single NUL byte before `end` that isn't part of a longer string,
	// which in practice is simply the last byte of the name heap once every
	// name's own NUL terminator is accounted for; instead of re-deriving
	// that, callers that need the exact boundary should track it while
	// walking Entries(). For the common case (no embedded NULs other than
	// name terminators) the copyright block, if present, is whatever
	// remains after the heap's final NUL.
	heap := r.data[start:end]
	idx := -1
	for i := len(heap) - 1; i >= 0; i-- {
		if heap[i] == 0x00 {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(heap) {
		return "", nil
	}
	rest := heap[idx+1:]
	length, n, err := nnint.Unpack(rest)
	if err != nil {
		return "", nil
	}
	if uint64(len(rest)-n) < length {
		return "", ErrOutsideBoundary
	}
	return string(rest[n : uint64(n)+length]), nil
}
