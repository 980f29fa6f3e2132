// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package entity

import (
	"testing"

	"github.com/saferwall/rde/sflv"
)

func TestSetSequenceAssignmentIsAlphabeticalAndDense(t *testing.T) {
	r := NewRepository()
	drive := r.Set("Drive.Drive")
	drive.AddProperty(Property{Name: "Status", Format: sflv.FormatSet})
	drive.AddProperty(Property{Name: "Id", Format: sflv.FormatString})
	drive.AddProperty(Property{Name: "Name", Format: sflv.FormatString})

	r.AssignSequences()

	want := []string{"Id", "Name", "Status"}
	got := drive.Properties()
	if len(got) != len(want) {
		t.Fatalf("got %d properties, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name || got[i].Seq != i {
			t.Errorf("Properties()[%d] = %+v, want name=%s seq=%d", i, got[i], name, i)
		}
	}
}

func TestBaseTypePropertyWinsOverDuplicateDerivedName(t *testing.T) {
	r := NewRepository()
	e := r.Set("Drive.Drive")
	added := e.AddProperty(Property{Name: "Id", Format: sflv.FormatString, Flags: 0})
	if !added {
		t.Fatalf("first AddProperty(Id) should succeed")
	}
	dup := e.AddProperty(Property{Name: "Id", Format: sflv.FormatInteger, Flags: 0xF})
	if dup {
		t.Fatalf("second AddProperty(Id) should be rejected as duplicate")
	}

	p, ok := e.Property("Id")
	if !ok || p.Format != sflv.FormatString || p.Flags != 0 {
		t.Errorf("Property(Id) = %+v, want the first (base-type) definition", p)
	}
}

func TestEnumSequenceOrderingByRevision(t *testing.T) {
	r := NewRepository()
	e := r.Enum("Drive.MediaType")
	e.AddEnumMember("v1_1_0", "Cherry")
	e.AddEnumMember("v1_0_0", "Banana")
	e.AddEnumMember("v1_0_0", "Apple")

	r.AssignSequences()

	want := []EnumMember{
		{Seq: 0, Name: "Apple"},
		{Seq: 1, Name: "Banana"},
		{Seq: 2, Name: "Cherry"},
	}
	if len(e.Members) != len(want) {
		t.Fatalf("got %d members, want %d", len(e.Members), len(want))
	}
	for i, m := range want {
		if e.Members[i] != m {
			t.Errorf("Members[%d] = %+v, want %+v", i, e.Members[i], m)
		}
	}
}

func TestEnumCaseInsensitiveSortWithinBucket(t *testing.T) {
	r := NewRepository()
	e := r.Enum("Drive.Status")
	e.AddEnumMember("", "banana")
	e.AddEnumMember("", "Apple")

	r.AssignSequences()

	if e.Members[0].Name != "Apple" || e.Members[1].Name != "banana" {
		t.Errorf("Members = %+v, want [Apple, banana]", e.Members)
	}
}

func TestGraftOEM(t *testing.T) {
	r := NewRepository()
	r.GraftOEM("Drive.DriveOem", "OEM1", "OEM1DriveExt.OEM1DriveExt")
	r.GraftOEM("Drive.DriveOem", "OEM2", "OEM2DriveExt.OEM2DriveExt")
	r.AssignSequences()

	oem, ok := r.Get("Drive.DriveOem")
	if !ok {
		t.Fatalf("Drive.DriveOem not created")
	}
	if len(oem.Properties()) != 2 {
		t.Fatalf("got %d properties, want 2", len(oem.Properties()))
	}
	p, ok := oem.Property("OEM1")
	if !ok || p.Ref != "OEM1DriveExt.OEM1DriveExt" {
		t.Errorf("OEM1 property = %+v", p)
	}
}
