// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sflv

import (
	"errors"
	"strings"

	"github.com/saferwall/rde/nnint"
)

// ErrInvalidBoolean is returned when a Boolean value byte is neither 0x00
// nor 0x01.
var ErrInvalidBoolean = errors.New("sflv: invalid boolean value byte")

// ErrUnterminatedString is returned when a String value is missing its NUL
// terminator.
var ErrUnterminatedString = errors.New("sflv: string value missing NUL terminator")

// leMinimalUnsigned returns the minimal little-endian byte encoding of u,
// at least one byte (zero is one zero byte).
func leMinimalUnsigned(u uint64) []byte {
	buf := []byte{byte(u)}
	u >>= 8
	for u != 0 {
		buf = append(buf, byte(u))
		u >>= 8
	}
	return buf
}

// PackInteger encodes v as two's-complement little-endian using the minimum
// byte count, with a trailing zero byte appended when a positive value's
// high bit would otherwise read as negative.
func PackInteger(v int64) []byte {
	if v >= 0 {
		buf := leMinimalUnsigned(uint64(v))
		if buf[len(buf)-1]&0x80 != 0 {
			buf = append(buf, 0x00)
		}
		return buf
	}

	n := 1
	for {
		lo := -(int64(1) << (8*uint(n) - 1))
		hi := (int64(1) << (8*uint(n) - 1)) - 1
		if v >= lo && v <= hi {
			break
		}
		n++
	}
	uv := uint64(v)
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = byte(uv)
		uv >>= 8
	}
	return buf
}

// UnpackInteger decodes a two's-complement little-endian integer value.
func UnpackInteger(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, ErrTruncated
	}
	var u uint64
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	// Sign-extend from the actual bit width.
	bits := uint(len(b)) * 8
	if bits < 64 && b[len(b)-1]&0x80 != 0 {
		u |= ^uint64(0) << bits
	}
	return int64(u), nil
}

// PackBoolean encodes a Boolean value as a single byte.
func PackBoolean(v bool) []byte {
	if v {
		return []byte{0x01}
	}
	return []byte{0x00}
}

// UnpackBoolean decodes a Boolean value.
func UnpackBoolean(b []byte) (bool, error) {
	if len(b) != 1 {
		return false, ErrTruncated
	}
	switch b[0] {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, ErrInvalidBoolean
	}
}

// EscapeString escapes embedded double quotes the way the encoder does
// before packing a JSON string value into the wire form.
func EscapeString(s string) string {
	if !strings.ContainsRune(s, '"') {
		return s
	}
	return strings.ReplaceAll(s, `"`, `\"`)
}

// UnescapeString reverses EscapeString.
func UnescapeString(s string) string {
	if !strings.Contains(s, `\"`) {
		return s
	}
	return strings.ReplaceAll(s, `\"`, `"`)
}

// PackString encodes a (already-escaped) string value as UTF-8 bytes
// followed by a NUL terminator.
func PackString(s string) []byte {
	b := make([]byte, 0, len(s)+1)
	b = append(b, s...)
	b = append(b, 0x00)
	return b
}

// UnpackString decodes a NUL-terminated String value, dropping the
// terminator.
func UnpackString(b []byte) (string, error) {
	if len(b) == 0 || b[len(b)-1] != 0x00 {
		return "", ErrUnterminatedString
	}
	return string(b[:len(b)-1]), nil
}

// PackEnum encodes the sequence number of the chosen enum member as a
// bare nnint.
func PackEnum(memberSeq uint64) []byte {
	return nnint.Pack(nil, memberSeq)
}

// UnpackEnum decodes an Enum value.
func UnpackEnum(b []byte) (uint64, error) {
	v, n, err := nnint.Unpack(b)
	if err != nil {
		return 0, err
	}
	if n != len(b) {
		return 0, ErrLengthMismatch
	}
	return v, nil
}

// PackResourceLink encodes a PDR id as a bare nnint.
func PackResourceLink(pdr uint64) []byte {
	return nnint.Pack(nil, pdr)
}

// UnpackResourceLink decodes a ResourceLink value.
func UnpackResourceLink(b []byte) (uint64, error) {
	v, n, err := nnint.Unpack(b)
	if err != nil {
		return 0, err
	}
	if n != len(b) {
		return 0, ErrLengthMismatch
	}
	return v, nil
}
