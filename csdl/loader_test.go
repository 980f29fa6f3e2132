// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package csdl

import (
	"testing"

	"github.com/saferwall/rde/entity"
	"github.com/saferwall/rde/sflv"
)

type staticProvider map[string][]byte

func (p staticProvider) Resolve(uri string) (string, []byte, bool) {
	data, ok := p[uri]
	return uri, data, ok
}

const fixtureCSDL = `<?xml version="1.0" encoding="UTF-8"?>
<edmx:Edmx xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx" Version="4.0">
  <edmx:DataServices>
    <Schema xmlns="http://docs.oasis-open.org/odata/ns/edm" Namespace="Drive.v1_0_0">
      <EntityType Name="DriveBase">
        <Property Name="Id" Type="Edm.String" Nullable="false"/>
      </EntityType>
    </Schema>
    <Schema xmlns="http://docs.oasis-open.org/odata/ns/edm" Namespace="Drive">
      <EntityType Name="Drive" BaseType="Drive.v1_0_0.DriveBase">
        <Property Name="Name" Type="Edm.String"/>
        <Property Name="Status" Type="Drive.MediaType"/>
      </EntityType>
      <EnumType Name="MediaType">
        <Member Name="Cherry">
          <Annotation Term="Redfish.Revisions">
            <Collection>
              <Record>
                <PropertyValue Property="Kind" EnumMember="Redfish.RevisionKind/Added"/>
                <PropertyValue Property="Version" String="v1_1_0"/>
              </Record>
            </Collection>
          </Annotation>
        </Member>
        <Member Name="Banana">
          <Annotation Term="Redfish.Revisions">
            <Collection>
              <Record>
                <PropertyValue Property="Kind" EnumMember="Redfish.RevisionKind/Added"/>
                <PropertyValue Property="Version" String="v1_0_0"/>
              </Record>
            </Collection>
          </Annotation>
        </Member>
        <Member Name="Apple">
          <Annotation Term="Redfish.Revisions">
            <Collection>
              <Record>
                <PropertyValue Property="Kind" EnumMember="Redfish.RevisionKind/Added"/>
                <PropertyValue Property="Version" String="v1_0_0"/>
              </Record>
            </Collection>
          </Annotation>
        </Member>
      </EnumType>
      <Action Name="Reset">
        <Parameter Name="Binding" Type="Drive.Drive"/>
        <Parameter Name="ResetType" Type="Edm.String"/>
      </Action>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`

func loadFixture(t *testing.T) *entity.Repository {
	t.Helper()
	repo := entity.NewRepository()
	l := NewLoader(repo)
	if err := l.LoadAll("fixture.xml", []byte(fixtureCSDL), staticProvider{}); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if err := l.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return repo
}

func TestInheritancePropertiesMerge(t *testing.T) {
	repo := loadFixture(t)
	drive, ok := repo.Get("Drive.Drive")
	if !ok {
		t.Fatalf("Drive.Drive not built")
	}

	names := map[string]entity.Property{}
	for _, p := range drive.Properties() {
		names[p.Name] = p
	}
	if _, ok := names["Id"]; !ok {
		t.Errorf("Id (inherited from base type) missing")
	}
	if _, ok := names["Name"]; !ok {
		t.Errorf("Name missing")
	}
	status, ok := names["Status"]
	if !ok || status.Format != sflv.FormatEnum || status.Ref != "Drive.MediaType" {
		t.Errorf("Status property = %+v", status)
	}
	// Reset action becomes a Set-typed property on the bound entity.
	reset, ok := names["Reset"]
	if !ok || reset.Format != sflv.FormatSet {
		t.Errorf("Reset action property = %+v", reset)
	}
}

func TestEnumRevisionOrderingFromCSDL(t *testing.T) {
	repo := loadFixture(t)
	mt, ok := repo.Get("Drive.MediaType")
	if !ok {
		t.Fatalf("Drive.MediaType not built")
	}
	want := []string{"Apple", "Banana", "Cherry"}
	if len(mt.Members) != len(want) {
		t.Fatalf("got %d members, want %d", len(mt.Members), len(want))
	}
	for i, name := range want {
		if mt.Members[i].Name != name || mt.Members[i].Seq != i {
			t.Errorf("Members[%d] = %+v, want name=%s seq=%d", i, mt.Members[i], name, i)
		}
	}
}

func TestActionCreatesParameterEntity(t *testing.T) {
	repo := loadFixture(t)
	actionEntity, ok := repo.Get("Drive.Reset")
	if !ok {
		t.Fatalf("Drive.Reset action entity not built")
	}
	p, ok := actionEntity.Property("ResetType")
	if !ok || p.Format != sflv.FormatString {
		t.Errorf("ResetType property = %+v", p)
	}
}

func TestMissingBaseTypeIsFatal(t *testing.T) {
	repo := entity.NewRepository()
	l := NewLoader(repo)
	bad := `<?xml version="1.0"?>
<edmx:Edmx xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx">
  <edmx:DataServices>
    <Schema xmlns="http://docs.oasis-open.org/odata/ns/edm" Namespace="Drive">
      <EntityType Name="Drive" BaseType="Drive.Missing"/>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`
	if err := l.LoadAll("bad.xml", []byte(bad), staticProvider{}); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if err := l.Build(); err == nil {
		t.Errorf("Build with missing base type should fail")
	}
}

// TestAliasQualifiedTypeReferenceResolves exercises the normal Redfish CSDL
// case: a schema's BaseType/Property Type names a cross-namespace type
// through the edmx:Include Alias it was given, not the Include's literal
// (versioned) Namespace.
func TestAliasQualifiedTypeReferenceResolves(t *testing.T) {
	resourceCSDL := `<?xml version="1.0" encoding="UTF-8"?>
<edmx:Edmx xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx" Version="4.0">
  <edmx:DataServices>
    <Schema xmlns="http://docs.oasis-open.org/odata/ns/edm" Namespace="Resource.v1_0_0" Alias="Resource">
      <EntityType Name="ResourceBase">
        <Property Name="Id" Type="Edm.String"/>
      </EntityType>
      <EnumType Name="State">
        <Member Name="Enabled"/>
      </EnumType>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`

	rootCSDL := `<?xml version="1.0" encoding="UTF-8"?>
<edmx:Edmx xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx" Version="4.0">
  <edmx:Reference Uri="Resource_v1.xml">
    <edmx:Include Namespace="Resource.v1_0_0" Alias="Resource"/>
  </edmx:Reference>
  <edmx:DataServices>
    <Schema xmlns="http://docs.oasis-open.org/odata/ns/edm" Namespace="Drive">
      <EntityType Name="Drive" BaseType="Resource.ResourceBase">
        <Property Name="Status" Type="Resource.State"/>
      </EntityType>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`

	repo := entity.NewRepository()
	l := NewLoader(repo)
	provider := staticProvider{"Resource_v1.xml": []byte(resourceCSDL)}
	if err := l.LoadAll("root.xml", []byte(rootCSDL), provider); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if err := l.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	drive, ok := repo.Get("Drive.Drive")
	if !ok {
		t.Fatalf("Drive.Drive not built")
	}
	names := map[string]entity.Property{}
	for _, p := range drive.Properties() {
		names[p.Name] = p
	}
	if _, ok := names["Id"]; !ok {
		t.Errorf("Id (inherited via alias-qualified BaseType) missing")
	}
	status, ok := names["Status"]
	if !ok || status.Format != sflv.FormatEnum || status.Ref != "Resource.State" {
		t.Errorf("Status property = %+v, want Format=Enum Ref=Resource.State", status)
	}
}

func TestMissingReferenceIsNonFatal(t *testing.T) {
	repo := entity.NewRepository()
	l := NewLoader(repo)
	withRef := `<?xml version="1.0"?>
<edmx:Edmx xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx">
  <edmx:Reference Uri="Missing_v1.xml"/>
  <edmx:DataServices>
    <Schema xmlns="http://docs.oasis-open.org/odata/ns/edm" Namespace="Drive">
      <EntityType Name="Drive">
        <Property Name="Id" Type="Edm.String"/>
      </EntityType>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`
	if err := l.LoadAll("root.xml", []byte(withRef), staticProvider{}); err != nil {
		t.Fatalf("LoadAll with unresolved reference should be non-fatal: %v", err)
	}
	if err := l.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
}
