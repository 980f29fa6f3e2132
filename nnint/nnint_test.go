// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nnint

import (
	"bytes"
	"testing"
)

func TestPackUnpack(t *testing.T) {
	tests := []struct {
		in  uint64
		out []byte
	}{
		{0, []byte{0x01, 0x00}},
		{1, []byte{0x01, 0x01}},
		{255, []byte{0x01, 0xff}},
		{256, []byte{0x02, 0x00, 0x01}},
		{0xFFFF, []byte{0x02, 0xff, 0xff}},
		{0x10000, []byte{0x03, 0x00, 0x00, 0x01}},
	}

	for _, tt := range tests {
		got := Pack(nil, tt.in)
		if !bytes.Equal(got, tt.out) {
			t.Errorf("Pack(%d) = % x, want % x", tt.in, got, tt.out)
		}

		v, n, err := Unpack(tt.out)
		if err != nil {
			t.Fatalf("Unpack(% x) failed: %v", tt.out, err)
		}
		if v != tt.in || n != len(tt.out) {
			t.Errorf("Unpack(% x) = (%d, %d), want (%d, %d)", tt.out, v, n, tt.in, len(tt.out))
		}
	}
}

func TestUnpackTruncated(t *testing.T) {
	_, _, err := Unpack([]byte{0x02, 0x01})
	if err != ErrTruncated {
		t.Errorf("Unpack(short buf) err = %v, want %v", err, ErrTruncated)
	}
}

func TestUnpackEmpty(t *testing.T) {
	_, _, err := Unpack(nil)
	if err != ErrEmpty {
		t.Errorf("Unpack(nil) err = %v, want %v", err, ErrEmpty)
	}
}

func TestPackWithTrailingData(t *testing.T) {
	// Pack appends; a non-nil prefix must be preserved.
	dst := []byte{0xAA}
	got := Pack(dst, 5)
	want := []byte{0xAA, 0x01, 0x05}
	if !bytes.Equal(got, want) {
		t.Errorf("Pack(prefix, 5) = % x, want % x", got, want)
	}
}
