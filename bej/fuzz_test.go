// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bej

import (
	"testing"

	"github.com/saferwall/rde/builder"
	"github.com/saferwall/rde/dictionary"
)

// FuzzDecode feeds arbitrary byte streams to the decoder against a fixed,
// valid pair of dictionaries: the decoder must reject malformed input with
// an error rather than panic.
func FuzzDecode(f *testing.F) {
	repo := buildDriveRepo()

	rows, err := builder.New(repo).Build("Drive.Drive")
	if err != nil {
		f.Fatalf("builder.Build: %v", err)
	}
	schemaBytes, err := dictionary.NewWriter().Serialize(rows, 1, false)
	if err != nil {
		f.Fatalf("Serialize schema: %v", err)
	}
	schema, err := dictionary.NewReader(schemaBytes)
	if err != nil {
		f.Fatalf("NewReader schema: %v", err)
	}

	annotSchema, err := builder.ParseAnnotationSchema("1.0.0", []byte(`{
		"properties": {
			"@odata.id": {"type": "string"},
			"@odata.type": {"type": "string"}
		}
	}`))
	if err != nil {
		f.Fatalf("ParseAnnotationSchema: %v", err)
	}
	annotRows, err := builder.BuildAnnotationDictionary([]builder.AnnotationSchema{annotSchema})
	if err != nil {
		f.Fatalf("BuildAnnotationDictionary: %v", err)
	}
	annotBytes, err := dictionary.NewWriter().Serialize(annotRows, 1, false)
	if err != nil {
		f.Fatalf("Serialize annot: %v", err)
	}
	annot, err := dictionary.NewReader(annotBytes)
	if err != nil {
		f.Fatalf("NewReader annot: %v", err)
	}

	dec, err := NewDecoder(schema, annot)
	if err != nil {
		f.Fatalf("NewDecoder: %v", err)
	}

	enc, err := NewEncoder(schema, annot)
	if err != nil {
		f.Fatalf("NewEncoder: %v", err)
	}
	seed, err := enc.EncodeJSON([]byte(`{"Id": "disk0", "CapacityBytes": 1, "Encrypted": true, "Status": "OK"}`))
	if err != nil {
		f.Fatalf("seed EncodeJSON: %v", err)
	}
	f.Add(seed)
	f.Add([]byte{})
	f.Add([]byte{0x00, 0xF0, 0xF1, 0xF1, 0x00, 0x00, 0x00})

	f.Fuzz(func(t *testing.T, buf []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Decode panicked on %x: %v", buf, r)
			}
		}()
		_, _ = dec.Decode(buf, nil)
	})
}
