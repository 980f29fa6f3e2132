// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package profile implements the Redfish profile pruner (§4.H): it
// restricts an entity.Repository to only the properties and enum values a
// profile document requires, ahead of dictionary construction.
package profile

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/saferwall/rde/entity"
	"github.com/saferwall/rde/sflv"
)

// Requirement is one PropertyRequirements entry: either a leaf requirement
// (no further nesting) or a node that itself constrains a referenced
// entity's properties or, for an enum-typed property, its allowed Values.
type Requirement struct {
	PropertyRequirements map[string]Requirement `json:"PropertyRequirements"`
	Values                []string               `json:"Values"`
}

// Document is the subset of a DMTF Redfish profile this package consumes.
type Document struct {
	Resources map[string]struct {
		PropertyRequirements map[string]Requirement `json:"PropertyRequirements"`
	} `json:"Resources"`
}

// Parse decodes a profile JSON document.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("profile: malformed profile document: %w", err)
	}
	return doc, nil
}

// Error reports a fatal profile-integrity failure: a profile referencing a
// property absent from the schema (§4.H, §7).
type Error struct {
	Entity   string
	Property string
}

func (e *Error) Error() string {
	return fmt.Sprintf("profile: %s.%s is not present in the schema", e.Entity, e.Property)
}

// entityNameForResource maps a profile Resources key to the qualified
// entity name the CSDL loader would have created for it: Redfish resource
// namespaces are conventionally "Thing.Thing" (e.g. "Drive.Drive",
// "Storage.Storage"), the same convention §4.E's CSDL loader follows for
// every EntityType it builds.
func entityNameForResource(resource string) string {
	return resource + "." + resource
}

// Apply restricts repo in place to exactly the properties and enum values
// named by doc, then renumbers every touched entity's sequence numbers.
// It returns a fatal *Error the first time a requirement names a property
// absent from the schema.
func Apply(repo *entity.Repository, doc Document) error {
	for resource, req := range doc.Resources {
		qname := entityNameForResource(resource)
		if _, ok := repo.Get(qname); !ok {
			return &Error{Entity: qname, Property: ""}
		}
		if err := prune(repo, qname, req.PropertyRequirements); err != nil {
			return err
		}
	}
	repo.AssignSequences()
	return nil
}

// prune restricts the named entity to the schema properties named in reqs,
// recursing into any referenced sub-entity or enum a requirement further
// constrains.
func prune(repo *entity.Repository, qname string, reqs map[string]Requirement) error {
	e, ok := repo.Get(qname)
	if !ok {
		return &Error{Entity: qname}
	}

	keep := make(map[string]bool, len(reqs))
	for key, req := range reqs {
		// Annotation requirements (keys containing "@") are accepted
		// without schema cross-check (§4.H) — they don't name a structural
		// property, so there's nothing to keep, recurse into, or validate.
		if strings.Contains(key, "@") {
			continue
		}

		p, found := e.Property(key)
		if !found {
			return &Error{Entity: qname, Property: key}
		}
		keep[strings.ToLower(key)] = true

		if len(req.PropertyRequirements) > 0 && p.Ref != "" {
			if err := prune(repo, p.Ref, req.PropertyRequirements); err != nil {
				return err
			}
		}
		if len(req.Values) > 0 && p.Format == sflv.FormatEnum && p.Ref != "" {
			if err := pruneEnumValues(repo, p.Ref, req.Values); err != nil {
				return err
			}
		}
	}

	e.FilterProperties(keep)
	return nil
}

func pruneEnumValues(repo *entity.Repository, qname string, values []string) error {
	e, ok := repo.Get(qname)
	if !ok {
		return &Error{Entity: qname}
	}
	keep := make(map[string]bool, len(values))
	for _, v := range values {
		keep[v] = true
	}
	e.FilterEnumMembers(keep)
	return nil
}
