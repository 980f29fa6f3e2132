// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package csdl parses OData CSDL (EDMX) documents into an entity
// repository (§4.E). It is independent of the BEJ codec and dictionary
// builder; it only produces entity.Repository entries and a namespace
// index.
package csdl

import "encoding/xml"

// edmx is the root envelope of a CSDL document.
type edmx struct {
	XMLName      xml.Name        `xml:"Edmx"`
	References   []edmxReference `xml:"Reference"`
	DataServices edmxDataServices `xml:"DataServices"`
}

type edmxReference struct {
	Uri      string        `xml:"Uri,attr"`
	Includes []edmxInclude `xml:"Include"`
}

type edmxInclude struct {
	Namespace string `xml:"Namespace,attr"`
	Alias     string `xml:"Alias,attr"`
}

type edmxDataServices struct {
	Schemas []edmSchema `xml:"Schema"`
}

type edmSchema struct {
	Namespace       string               `xml:"Namespace,attr"`
	Alias           string               `xml:"Alias,attr"`
	EntityTypes     []edmStructuredType  `xml:"EntityType"`
	ComplexTypes    []edmStructuredType  `xml:"ComplexType"`
	EnumTypes       []edmEnumType        `xml:"EnumType"`
	Actions         []edmAction          `xml:"Action"`
	Terms           []edmTerm            `xml:"Term"`
	TypeDefinitions []edmTypeDefinition  `xml:"TypeDefinition"`
}

// edmStructuredType covers both EntityType and ComplexType: the two share
// every field the loader cares about.
type edmStructuredType struct {
	Name                 string             `xml:"Name,attr"`
	BaseType             string             `xml:"BaseType,attr"`
	Abstract             string             `xml:"Abstract,attr"`
	Properties           []edmProperty      `xml:"Property"`
	NavigationProperties []edmNavProperty   `xml:"NavigationProperty"`
}

func (t edmStructuredType) isAbstract() bool {
	return t.Abstract == "true"
}

type edmProperty struct {
	Name        string         `xml:"Name,attr"`
	Type        string         `xml:"Type,attr"`
	Nullable    string         `xml:"Nullable,attr"`
	Annotations []edmAnnotation `xml:"Annotation"`
}

type edmNavProperty struct {
	Name        string          `xml:"Name,attr"`
	Type        string          `xml:"Type,attr"`
	Nullable    string          `xml:"Nullable,attr"`
	Annotations []edmAnnotation `xml:"Annotation"`
}

type edmAnnotation struct {
	Term       string        `xml:"Term,attr"`
	String     string        `xml:"String,attr"`
	Bool       string        `xml:"Bool,attr"`
	EnumMember string        `xml:"EnumMember,attr"`
	Collection *edmCollection `xml:"Collection"`
}

type edmCollection struct {
	Records []edmRecord `xml:"Record"`
}

type edmRecord struct {
	PropertyValues []edmPropertyValue `xml:"PropertyValue"`
}

type edmPropertyValue struct {
	Property   string `xml:"Property,attr"`
	String     string `xml:"String,attr"`
	EnumMember string `xml:"EnumMember,attr"`
}

type edmEnumType struct {
	Name          string         `xml:"Name,attr"`
	UnderlyingType string        `xml:"UnderlyingType,attr"`
	Members       []edmEnumMember `xml:"Member"`
}

type edmEnumMember struct {
	Name        string          `xml:"Name,attr"`
	Value       string          `xml:"Value,attr"`
	Annotations []edmAnnotation `xml:"Annotation"`
}

type edmAction struct {
	Name       string         `xml:"Name,attr"`
	Parameters []edmParameter `xml:"Parameter"`
}

type edmParameter struct {
	Name string `xml:"Name,attr"`
	Type string `xml:"Type,attr"`
}

type edmTerm struct {
	Name string `xml:"Name,attr"`
	Type string `xml:"Type,attr"`
}

type edmTypeDefinition struct {
	Name           string `xml:"Name,attr"`
	UnderlyingType string `xml:"UnderlyingType,attr"`
}

// revisionAdded extracts the "Version" recorded alongside a
// "Redfish.RevisionKind/Added" Kind in a Redfish.Revisions annotation,
// returning "" if none is present (§4.E.5).
func revisionAdded(anns []edmAnnotation) string {
	for _, a := range anns {
		if a.Term != "Redfish.Revisions" || a.Collection == nil {
			continue
		}
		for _, rec := range a.Collection.Records {
			kind, version := "", ""
			for _, pv := range rec.PropertyValues {
				switch pv.Property {
				case "Kind":
					kind = pv.EnumMember
				case "Version":
					version = pv.String
				}
			}
			if version != "" && (kind == "" || containsAdded(kind)) {
				return version
			}
		}
	}
	return ""
}

func containsAdded(enumMember string) bool {
	return len(enumMember) >= 5 && enumMember[len(enumMember)-5:] == "Added"
}

// permissionFlag extracts the OData.Permissions annotation's EnumMember
// suffix ("Read", "Write", "ReadWrite"), or "" if absent (§4.E.4).
func permissionFlag(anns []edmAnnotation) string {
	for _, a := range anns {
		if a.Term != "OData.Permissions" {
			continue
		}
		m := a.EnumMember
		if idx := lastSlash(m); idx >= 0 {
			return m[idx+1:]
		}
		return m
	}
	return ""
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// hasAutoExpand reports whether a navigation property carries
// OData.AutoExpand (§4.E.4).
func hasAutoExpand(anns []edmAnnotation) bool {
	for _, a := range anns {
		if a.Term == "OData.AutoExpand" {
			return true
		}
	}
	return false
}

func isNullable(nullable string) bool {
	return nullable != "false"
}
