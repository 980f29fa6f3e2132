// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bej

import (
	"errors"
	"fmt"
)

// ErrStrictPDRViolation is returned when strict mode (a caller-supplied PDR
// map was provided) would otherwise require minting a new PDR id for a URI
// the map doesn't already contain (§4.I).
var ErrStrictPDRViolation = errors.New("bej: strict mode forbids inventing a new PDR id")

// PDRMap is the encoder's URI<->PDR-id table (§5: "the PDR map is owned by
// the encoder during a single encode and returned to the caller"). A new
// PDRMap must be used per encode; it is never shared across encodes.
type PDRMap struct {
	uriToID map[string]uint64
	next    uint64
	strict  bool
}

// NewPDRMap returns an empty, non-strict PDRMap: every new URI is assigned
// the next available id.
func NewPDRMap() *PDRMap {
	return &PDRMap{uriToID: make(map[string]uint64)}
}

// NewStrictPDRMap seeds a PDRMap from a caller-provided URI->id table and
// puts it in strict mode: Resolve never invents an id for a URI the seed
// didn't already contain (§4.I "is_strict = true whenever a caller-provided
// PDR map exists").
func NewStrictPDRMap(seed map[string]uint64) *PDRMap {
	m := &PDRMap{uriToID: make(map[string]uint64, len(seed)), strict: true}
	for uri, id := range seed {
		m.uriToID[uri] = id
		if id+1 > m.next {
			m.next = id + 1
		}
	}
	return m
}

// Resolve returns the PDR id for uri, assigning a fresh one (non-strict
// mode) or failing with ErrStrictPDRViolation (strict mode) the first time
// uri isn't already present.
func (m *PDRMap) Resolve(uri string) (uint64, error) {
	if id, ok := m.uriToID[uri]; ok {
		return id, nil
	}
	if m.strict {
		return 0, fmt.Errorf("%w: %s", ErrStrictPDRViolation, uri)
	}
	id := m.next
	m.uriToID[uri] = id
	m.next++
	return id, nil
}

// Snapshot returns a copy of the URI->id table, for the PDR-map JSON output
// a CLI's encode subcommand writes via --pdr-out (§6).
func (m *PDRMap) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(m.uriToID))
	for uri, id := range m.uriToID {
		out[uri] = id
	}
	return out
}

// Bindings inverts the map to id->URI, the form the decoder's
// deferred-binding substitution consults (§4.J).
func (m *PDRMap) Bindings() map[uint64]string {
	out := make(map[uint64]string, len(m.uriToID))
	for uri, id := range m.uriToID {
		out[id] = uri
	}
	return out
}
