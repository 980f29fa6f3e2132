// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bej

import (
	"bytes"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/saferwall/rde/builder"
	"github.com/saferwall/rde/dictionary"
	"github.com/saferwall/rde/entity"
	"github.com/saferwall/rde/sflv"
)

// buildDriveRepo mirrors a small slice of the Drive resource: a string Id, an
// Integer CapacityBytes, a Status enum, an array of Location sets, and an
// @odata.id-bearing Links set, enough to exercise every format the encoder
// and decoder dispatch on.
func buildDriveRepo() *entity.Repository {
	r := entity.NewRepository()

	drive := r.Set("Drive.Drive")
	drive.AddProperty(entity.Property{Name: "Id", Format: sflv.FormatString})
	drive.AddProperty(entity.Property{Name: "CapacityBytes", Format: sflv.FormatInteger})
	drive.AddProperty(entity.Property{Name: "Encrypted", Format: sflv.FormatBoolean})
	drive.AddProperty(entity.Property{Name: "Status", Format: sflv.FormatEnum, Ref: "Drive.StatusType"})
	drive.AddProperty(entity.Property{Name: "Locations", Format: sflv.FormatSet, Ref: "Drive.Location", IsArray: true})
	drive.AddProperty(entity.Property{Name: "Chassis", Format: sflv.FormatSet, Ref: "Drive.Links"})

	loc := r.Set("Drive.Location")
	loc.AddProperty(entity.Property{Name: "Info", Format: sflv.FormatString})

	links := r.Set("Drive.Links")
	links.AddProperty(entity.Property{Name: "Chassis", Format: sflv.FormatResourceLink})

	status := r.Enum("Drive.StatusType")
	status.AddEnumMember("", "OK")
	status.AddEnumMember("", "Warning")
	status.AddEnumMember("", "Critical")

	r.AssignSequences()
	return r
}

func buildDictionaries(t *testing.T, repo *entity.Repository, root string) (*dictionary.Reader, *dictionary.Reader) {
	t.Helper()

	rows, err := builder.New(repo).Build(root)
	if err != nil {
		t.Fatalf("builder.Build: %v", err)
	}
	schemaBytes, err := dictionary.NewWriter().Serialize(rows, 1, false)
	if err != nil {
		t.Fatalf("Serialize schema: %v", err)
	}
	schema, err := dictionary.NewReader(schemaBytes)
	if err != nil {
		t.Fatalf("NewReader schema: %v", err)
	}

	annotSchema, err := builder.ParseAnnotationSchema("1.0.0", []byte(`{
		"properties": {
			"@odata.id": {"type": "string"},
			"@odata.type": {"type": "string"}
		}
	}`))
	if err != nil {
		t.Fatalf("ParseAnnotationSchema: %v", err)
	}
	annotRows, err := builder.BuildAnnotationDictionary([]builder.AnnotationSchema{annotSchema})
	if err != nil {
		t.Fatalf("BuildAnnotationDictionary: %v", err)
	}
	annotBytes, err := dictionary.NewWriter().Serialize(annotRows, 1, false)
	if err != nil {
		t.Fatalf("Serialize annot: %v", err)
	}
	annot, err := dictionary.NewReader(annotBytes)
	if err != nil {
		t.Fatalf("NewReader annot: %v", err)
	}

	return schema, annot
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	repo := buildDriveRepo()
	schema, annot := buildDictionaries(t, repo, "Drive.Drive")

	enc, err := NewEncoder(schema, annot)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	input := []byte(`{
		"Id": "disk0",
		"CapacityBytes": 128,
		"Encrypted": false,
		"Status": "Critical",
		"Locations": [ {"Info": "Bay1"}, {"Info": "Bay2"} ],
		"Chassis": { "Chassis@odata.id": "/redfish/v1/Chassis/1" },
		"@odata.id": "/redfish/v1/Drives/0",
		"@odata.type": "#Drive.v1_0_0.Drive"
	}`)

	out, err := enc.EncodeJSON(input)
	require.NoError(t, err)

	dec, err := NewDecoder(schema, annot)
	require.NoError(t, err)
	doc, err := dec.Decode(out, enc.pdr.Bindings())
	require.NoError(t, err)

	require.Equal(t, "disk0", doc["Id"])
	n, ok := doc["CapacityBytes"].(json.Number)
	require.True(t, ok, "CapacityBytes = %v", doc["CapacityBytes"])
	require.Equal(t, "128", n.String())
	require.Equal(t, false, doc["Encrypted"])
	require.Equal(t, "Critical", doc["Status"])
	require.Equal(t, "/redfish/v1/Drives/0", doc["@odata.id"])
	require.Equal(t, "#Drive.v1_0_0.Drive", doc["@odata.type"])

	locs, ok := doc["Locations"].([]interface{})
	if !ok || len(locs) != 2 {
		t.Fatalf("Locations = %v", doc["Locations"])
	}
	first, ok := locs[0].(map[string]interface{})
	if !ok || first["Info"] != "Bay1" {
		t.Errorf("Locations[0] = %v", locs[0])
	}

	chassis, ok := doc["Chassis"].(map[string]interface{})
	if !ok {
		t.Fatalf("Chassis = %v", doc["Chassis"])
	}
	if chassis["Chassis@odata.id"] != "/redfish/v1/Chassis/1" {
		t.Errorf("Chassis.Chassis@odata.id = %v", chassis["Chassis@odata.id"])
	}
}

func TestEncodeIntegerBoundaries(t *testing.T) {
	repo := entity.NewRepository()
	root := repo.Set("Drive.Drive")
	root.AddProperty(entity.Property{Name: "A", Format: sflv.FormatInteger})
	root.AddProperty(entity.Property{Name: "B", Format: sflv.FormatInteger})
	root.AddProperty(entity.Property{Name: "C", Format: sflv.FormatInteger})
	repo.AssignSequences()

	schema, annot := buildDictionaries(t, repo, "Drive.Drive")
	enc, err := NewEncoder(schema, annot)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	dec, err := NewDecoder(schema, annot)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	out, err := enc.EncodeJSON([]byte(`{"A": 128, "B": -1, "C": 0}`))
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	doc, err := dec.Decode(out, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for k, want := range map[string]string{"A": "128", "B": "-1", "C": "0"} {
		n, ok := doc[k].(json.Number)
		if !ok || n.String() != want {
			t.Errorf("%s = %v, want %s", k, doc[k], want)
		}
	}
}

func TestEncodeWithPDRMapIsIdempotent(t *testing.T) {
	repo := entity.NewRepository()
	root := repo.Set("Drive.Drive")
	root.AddProperty(entity.Property{Name: "Chassis", Format: sflv.FormatResourceLink})
	repo.AssignSequences()

	schema, annot := buildDictionaries(t, repo, "Drive.Drive")
	input := []byte(`{"Chassis": "/redfish/v1/Chassis/1"}`)

	enc1, err := NewEncoder(schema, annot)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	out1, err := enc1.EncodeJSON(input)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}

	enc2, err := NewEncoder(schema, annot)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	enc2.WithPDRMap(enc1.PDRMap())
	out2, err := enc2.EncodeJSON(input)
	if err != nil {
		t.Fatalf("EncodeJSON with seeded PDR map: %v", err)
	}

	if !bytes.Equal(out1, out2) {
		t.Errorf("re-encoding with the same PDR map produced different bytes")
	}
}

func TestEncodeStrictPDRViolation(t *testing.T) {
	repo := entity.NewRepository()
	root := repo.Set("Drive.Drive")
	root.AddProperty(entity.Property{Name: "Chassis", Format: sflv.FormatResourceLink})
	repo.AssignSequences()

	schema, annot := buildDictionaries(t, repo, "Drive.Drive")
	enc, err := NewEncoder(schema, annot)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	enc.WithPDRMap(map[string]uint64{"/redfish/v1/Chassis/known": 0})

	if _, err := enc.EncodeJSON([]byte(`{"Chassis": "/redfish/v1/Chassis/unknown"}`)); err == nil {
		t.Errorf("expected ErrStrictPDRViolation for an unseeded URI")
	}
}

func TestDecodeRejectsWrongSchemaClassByte(t *testing.T) {
	repo := entity.NewRepository()
	root := repo.Set("Drive.Drive")
	root.AddProperty(entity.Property{Name: "Id", Format: sflv.FormatString})
	repo.AssignSequences()

	schema, annot := buildDictionaries(t, repo, "Drive.Drive")
	dec, err := NewDecoder(schema, annot)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	buf := []byte{0x00, 0xF0, 0xF1, 0xF1, 0x00, 0x00, 0x09}
	if _, err := dec.Decode(buf, nil); err != ErrBadSchemaClass {
		t.Errorf("Decode with bad schema class = %v, want ErrBadSchemaClass", err)
	}
}
