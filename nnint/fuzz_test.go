// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nnint

import "testing"

// FuzzUnpack feeds arbitrary byte slices to Unpack looking for panics; a
// well-formed length byte must never cause it to read past buf.
func FuzzUnpack(f *testing.F) {
	f.Add([]byte{0x00})
	f.Add([]byte{0x01, 0xFF})
	f.Add([]byte{0x08, 1, 2, 3, 4, 5, 6, 7, 8})
	f.Fuzz(func(t *testing.T, buf []byte) {
		value, consumed, err := Unpack(buf)
		if err != nil {
			return
		}
		if consumed > len(buf) {
			t.Fatalf("consumed %d > len(buf) %d", consumed, len(buf))
		}
		roundTripped := Pack(nil, value)
		if len(roundTripped) > consumed {
			t.Fatalf("Pack(%d) produced %d bytes, longer than the %d consumed decoding it", value, len(roundTripped), consumed)
		}
	})
}
