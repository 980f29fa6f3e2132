// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sflv

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/saferwall/rde/nnint"
)

// Real is the decomposed form of a BEJ Real value: a whole part, a count of
// leading zeros in the fractional part, the significant fractional digits
// as an integer, and an optional exponent.
//
// Negative marks a value in (-1, 0] whose sign two's-complement Whole can't
// carry on its own, since int64(-0) == 0: -0.5 and -0.003 both decompose to
// Whole == 0 but must still round-trip as negative.
type Real struct {
	Whole        int64
	Negative     bool
	LeadingZeros uint64
	Fract        uint64
	Exp          int64
	HasExp       bool
}

// PackReal encodes r per §4.B: nnint whole_len | integer whole |
// nnint leading_zero_count | nnint fract | nnint exp_len | [integer exp].
// A zero-whole negative value packs whole_len as 0 (a length PackInteger
// never otherwise produces, since even whole==0 packs to one byte) as a
// sentinel for "whole is negative zero"; UnpackReal reverses it.
func PackReal(r Real) []byte {
	var dst []byte
	if r.Whole == 0 && r.Negative {
		dst = nnint.Pack(dst, 0)
	} else {
		wholeBytes := PackInteger(r.Whole)
		dst = nnint.Pack(dst, uint64(len(wholeBytes)))
		dst = append(dst, wholeBytes...)
	}
	dst = nnint.Pack(dst, r.LeadingZeros)
	dst = nnint.Pack(dst, r.Fract)
	if r.HasExp {
		expBytes := PackInteger(r.Exp)
		dst = nnint.Pack(dst, uint64(len(expBytes)))
		dst = append(dst, expBytes...)
	} else {
		dst = nnint.Pack(dst, 0)
	}
	return dst
}

// UnpackReal decodes a Real value.
func UnpackReal(b []byte) (Real, error) {
	var r Real

	wholeLen, n, err := nnint.Unpack(b)
	if err != nil {
		return r, err
	}
	b = b[n:]
	if wholeLen == 0 {
		r.Negative = true
	} else {
		if uint64(len(b)) < wholeLen {
			return r, ErrTruncated
		}
		r.Whole, err = UnpackInteger(b[:wholeLen])
		if err != nil {
			return r, err
		}
		b = b[wholeLen:]
	}

	r.LeadingZeros, n, err = nnint.Unpack(b)
	if err != nil {
		return r, err
	}
	b = b[n:]

	r.Fract, n, err = nnint.Unpack(b)
	if err != nil {
		return r, err
	}
	b = b[n:]

	expLen, n, err := nnint.Unpack(b)
	if err != nil {
		return r, err
	}
	b = b[n:]
	if expLen > 0 {
		if uint64(len(b)) < expLen {
			return r, ErrTruncated
		}
		r.Exp, err = UnpackInteger(b[:expLen])
		if err != nil {
			return r, err
		}
		r.HasExp = true
	}
	return r, nil
}

// RealFromFloat64 decomposes a float64 into the Real form. It is exact for
// values whose decimal representation round-trips through strconv, which is
// sufficient for the Redfish JSON numbers this codec ever sees.
func RealFromFloat64(f float64) Real {
	neg := math.Signbit(f)
	s := strconv.FormatFloat(math.Abs(f), 'f', -1, 64)

	var intPart, fracPart string
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot+1:]
	} else {
		intPart = s
	}

	whole, _ := strconv.ParseInt(intPart, 10, 64)
	if neg {
		whole = -whole
	}

	r := Real{Whole: whole}
	if neg && whole == 0 {
		r.Negative = true
	}
	if fracPart == "" {
		return r
	}

	lz := uint64(0)
	i := 0
	for i < len(fracPart) && fracPart[i] == '0' {
		lz++
		i++
	}
	if i == len(fracPart) {
		// All-zero fraction: no significant digits.
		return r
	}
	significant := fracPart[i:]
	fract, _ := strconv.ParseUint(significant, 10, 64)
	r.LeadingZeros = lz
	r.Fract = fract
	return r
}

// Float64 reconstitutes a float64 from the decomposed Real form.
func (r Real) Float64() float64 {
	sign := ""
	if r.Whole == 0 && r.Negative {
		sign = "-"
	}
	s := sign + fmt.Sprintf("%d", r.Whole)
	if r.LeadingZeros > 0 || r.Fract > 0 {
		s += "." + strings.Repeat("0", int(r.LeadingZeros)) + fmt.Sprintf("%d", r.Fract)
	}
	if r.HasExp {
		s = fmt.Sprintf("%se%d", s, r.Exp)
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
