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

// ErrUnresolvedRow is returned by Serialize when a row's Offset was never
// resolved to a concrete byte offset.
var ErrUnresolvedRow = errors.New("dictionary: row has unresolved offset")

// Writer accumulates a copyright string to append to a serialized
// dictionary. The row list itself is owned by the caller (the dictionary
// builder), which is what guarantees builds never share state (§5).
type Writer struct {
	copyright string
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// SetCopyright sets the trailing copyright string appended to every
// dictionary this Writer serializes, per the config file's Copyright key
// (§6).
func (w *Writer) SetCopyright(copyright string) {
	w.copyright = copyright
}

// RowByteOffset returns the absolute byte offset of the rowIndex-th entry
// in a serialized dictionary (header size plus rowIndex entries).
// The dictionary builder calls this while still constructing the row list,
// to populate Resolved offsets for entity sub-trees it has already placed.
func RowByteOffset(rowIndex int) uint32 {
	return uint32(HeaderSize + rowIndex*EntrySize)
}

// Serialize lays out rows, schemaVersion, and the truncated flag into the
// wire format described in §3. Every row's Offset must already be resolved.
func (w *Writer) Serialize(rows []Row, schemaVersion uint32, truncated bool) ([]byte, error) {
	if len(rows) > 0xFFFF {
		return nil, fmt.Errorf("dictionary: %d entries exceeds EntryCount field width", len(rows))
	}

	nameOffsets := make(map[string]uint32, len(rows))
	nameHeapStart := uint32(HeaderSize + len(rows)*EntrySize)
	var nameHeap []byte
	for _, r := range rows {
		if _, ok := nameOffsets[r.Name]; ok {
			continue
		}
		nameOffsets[r.Name] = nameHeapStart + uint32(len(nameHeap))
		nameHeap = append(nameHeap, []byte(r.Name)...)
		nameHeap = append(nameHeap, 0x00)
	}

	var copyrightBlock []byte
	if w.copyright != "" {
		copyrightBlock = nnint.Pack(nil, uint64(len(w.copyright)))
		copyrightBlock = append(copyrightBlock, w.copyright...)
	}

	totalSize := nameHeapStart + uint32(len(nameHeap)) + 1 + uint32(len(copyrightBlock))

	buf := make([]byte, HeaderSize, totalSize)
	buf[0] = VersionTag
	var flags uint8
	if truncated {
		flags |= FlagTruncated
	}
	buf[1] = flags
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(rows)))
	binary.LittleEndian.PutUint32(buf[4:8], schemaVersion)
	binary.LittleEndian.PutUint32(buf[8:12], totalSize)

	for _, r := range rows {
		entry, err := encodeEntry(r, nameOffsets)
		if err != nil {
			return nil, err
		}
		buf = append(buf, entry...)
	}

	buf = append(buf, nameHeap...)
	buf = append(buf, 0x00)
	buf = append(buf, copyrightBlock...)

	return buf, nil
}

func encodeEntry(r Row, nameOffsets map[string]uint32) ([]byte, error) {
	entry := make([]byte, EntrySize)
	entry[0] = byte(r.Format)<<4 | (r.Flags & 0x0F)
	binary.LittleEndian.PutUint16(entry[1:3], r.Seq)

	var childOffset uint32
	var childCount uint16
	if r.IsContainerFormat() {
		if r.Offset.IsPending() {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedRow, r.Offset.EntityName())
		}
		childOffset = r.Offset.Value()
		if r.Format == sflv.FormatArray {
			childCount = UnboundedChildCount
		} else {
			childCount = uint16(r.ChildCount)
		}
	}
	binary.LittleEndian.PutUint16(entry[3:5], uint16(childOffset))
	binary.LittleEndian.PutUint16(entry[5:7], childCount)

	entry[7] = byte(len(r.Name))
	binary.LittleEndian.PutUint16(entry[8:10], uint16(nameOffsets[r.Name]))

	return entry, nil
}
