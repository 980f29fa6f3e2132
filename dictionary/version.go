// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dictionary

import (
	"fmt"
	"strconv"
	"strings"
)

// UnversionedSchemaVersion is the SchemaVersion value for entities with no
// Redfish vMAJOR_MINOR_ERRATA suffix.
const UnversionedSchemaVersion uint32 = 0xFFFFFFFF

// ToVer32 encodes a Redfish version string ("v1_7_0") into the packed
// 32-bit SchemaVersion form used in the dictionary header (§3).
//
// The source treats the synthetic "v0_0_0" version (what
// get_latest_version returns when an entity has no actual versioned
// namespace) as equivalent to "unversioned" rather than encoding it
// literally; several call sites branch on this inconsistency (§9 Open
// Questions). This implementation keeps that behavior: "v0_0_0" and ""
// both map to UnversionedSchemaVersion.
func ToVer32(version string) (uint32, error) {
	if version == "" || version == "v0_0_0" {
		return UnversionedSchemaVersion, nil
	}

	v := strings.TrimPrefix(version, "v")
	parts := strings.Split(v, "_")
	if len(parts) != 3 {
		return 0, fmt.Errorf("dictionary: malformed schema version %q", version)
	}

	var nums [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("dictionary: malformed schema version %q: %w", version, err)
		}
		nums[i] = uint32(n)
	}

	major, minor, errata := nums[0], nums[1], nums[2]
	return ((major | 0xF0) << 24) | ((minor | 0xF0) << 16) | ((errata | 0xF0) << 8), nil
}
