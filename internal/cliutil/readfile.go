// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package cliutil holds small filesystem helpers shared by the
// generate_dictionaries and pldm_bej_encoder_decoder command front ends,
// the way the teacher's file.go centralizes mmap-backed reads for pedumper.
package cliutil

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadFile memory-maps path for a zero-copy read, the way the teacher's
// file.go maps PE files, and transcodes a leading UTF-16 byte-order mark to
// UTF-8 if present: CSDL and JSON Schema files exported by Windows-hosted
// authoring tools occasionally carry one, and neither encoding/xml nor
// encoding/json handle UTF-16 input on their own.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	// The CLI is single-shot: the mapping is intentionally left open for
	// the process lifetime rather than threading an Unmap call through
	// every caller.
	return decodeBOM(m)
}

func decodeBOM(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return data, nil
	}
	switch {
	case data[0] == 0xFF && data[1] == 0xFE, data[0] == 0xFE && data[1] == 0xFF:
		decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		out, _, err := transform.Bytes(decoder, data)
		return out, err
	default:
		return data, nil
	}
}
