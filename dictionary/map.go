// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dictionary

import (
	"fmt"
	"io"
)

// WriteMap renders a human-readable dump of rows, one line per entry, to w.
// This is the ".map" sidecar file generate_dictionaries emits next to every
// ".bin" dictionary (SPEC_FULL.md "Supplemented features").
func WriteMap(w io.Writer, rows []Row) error {
	for i, r := range rows {
		flags := ""
		if r.Flags&FlagReadOnly != 0 {
			flags += "RO"
		}
		if r.Flags&FlagNullable != 0 {
			if flags != "" {
				flags += "|"
			}
			flags += "NULLABLE"
		}

		offset := uint32(0)
		childCount := 0
		if r.IsContainerFormat() && !r.Offset.IsPending() {
			offset = r.Offset.Value()
			childCount = r.ChildCount
		}

		_, err := fmt.Fprintf(w, "%d: seq=%d format=%s flags=%s name=%q offset=%d children=%d\n",
			i, r.Seq, r.Format, flags, r.Name, offset, childCount)
		if err != nil {
			return err
		}
	}
	return nil
}
