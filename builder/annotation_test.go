// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package builder

import (
	"testing"

	"github.com/saferwall/rde/sflv"
)

func TestParseAndBuildAnnotationDictionary(t *testing.T) {
	v100, err := ParseAnnotationSchema("v1_0_0", []byte(`{
		"properties": {
			"odata.id$": {"type": "string"},
			"odata.type$": {"type": "string"}
		}
	}`))
	if err != nil {
		t.Fatalf("ParseAnnotationSchema v1_0_0: %v", err)
	}

	v110, err := ParseAnnotationSchema("v1_1_0", []byte(`{
		"properties": {
			"Message.ExtendedInfo$": {"type": "array"}
		},
		"patternProperties": {
			"^Redfish\\.[a-zA-Z0-9]+$": {"type": "integer"}
		}
	}`))
	if err != nil {
		t.Fatalf("ParseAnnotationSchema v1_1_0: %v", err)
	}

	rows, err := BuildAnnotationDictionary([]AnnotationSchema{v110, v100})
	if err != nil {
		t.Fatalf("BuildAnnotationDictionary: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}

	for i := 1; i < len(rows); i++ {
		if rows[i-1].Name >= rows[i].Name {
			t.Errorf("rows not sorted: %q >= %q", rows[i-1].Name, rows[i].Name)
		}
		if int(rows[i].Seq) != i {
			t.Errorf("rows[%d].Seq = %d, want %d", i, rows[i].Seq, i)
		}
	}

	byName := map[string]sflv.Format{}
	for _, r := range rows {
		byName[r.Name] = r.Format
	}
	if byName["@odata.id"] != sflv.FormatString {
		t.Errorf("@odata.id format = %s, want String", byName["@odata.id"])
	}
	if byName["@Message.ExtendedInfo"] != sflv.FormatArray {
		t.Errorf("@Message.ExtendedInfo format = %s, want Array", byName["@Message.ExtendedInfo"])
	}
	if _, ok := byName["@^Redfish\\.[a-zA-Z0-9]+"]; !ok {
		t.Errorf("pattern property missing from merge: %+v", byName)
	}
}

func TestBuildAnnotationDictionaryRejectsUnknownType(t *testing.T) {
	s, err := ParseAnnotationSchema("v1_0_0", []byte(`{"properties": {"odata.bad$": {"type": "nonsense"}}}`))
	if err != nil {
		t.Fatalf("ParseAnnotationSchema: %v", err)
	}
	if _, err := BuildAnnotationDictionary([]AnnotationSchema{s}); err == nil {
		t.Errorf("expected error for unrecognized JSON Schema type")
	}
}

func TestVersionLessOrdersNumerically(t *testing.T) {
	if !versionLess("v1_2_0", "v1_10_0") {
		t.Errorf("v1_2_0 should sort before v1_10_0 numerically, not lexicographically")
	}
	if versionLess("v1_10_0", "v1_2_0") {
		t.Errorf("v1_10_0 should not sort before v1_2_0")
	}
}
