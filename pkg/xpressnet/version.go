// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xpressnet

import (
	"fmt"
	"strconv"
)

// Version is a command station firmware version such as 3.6
type Version float64

// Version bounds
const (
	VersionMin Version = 0.0
	VersionMax Version = 99.9

	// DefaultVersion is assumed until the station reports its version
	DefaultVersion Version = 3.6
)

// VersionFromBCD converts a BCD version byte (0x36 -> 3.6)
func VersionFromBCD(b byte) (Version, error) {
	hi, lo := b>>4, b&0x0F
	if hi > 9 || lo > 9 {
		return 0, fmt.Errorf("invalid BCD version byte 0x%02X", b)
	}
	return Version(float64(int(hi)*10+int(lo)) / 10), nil
}

// ParseVersion parses a version string such as "3.6"
func ParseVersion(s string) (Version, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", s, err)
	}
	if f < float64(VersionMin) || f > float64(VersionMax) {
		return 0, fmt.Errorf("version %q out of range %.1f-%.1f", s, VersionMin, VersionMax)
	}
	return Version(f), nil
}

// String formats the version with one decimal
func (v Version) String() string {
	return strconv.FormatFloat(float64(v), 'f', 1, 64)
}

// VersionRange is an inclusive range of versions
type VersionRange struct {
	Min Version
	Max Version
}

// AllVersions covers every version
var AllVersions = VersionRange{Min: VersionMin, Max: VersionMax}

// Since returns the range from v upwards
func Since(v Version) VersionRange {
	return VersionRange{Min: v, Max: VersionMax}
}

// Until returns the range up to and including v
func Until(v Version) VersionRange {
	return VersionRange{Min: VersionMin, Max: v}
}

// Between returns the inclusive range [lo, hi]
func Between(lo, hi Version) VersionRange {
	return VersionRange{Min: lo, Max: hi}
}

// Contains reports whether v lies in the range
func (r VersionRange) Contains(v Version) bool {
	return v >= r.Min && v <= r.Max
}

// Overlaps reports whether both ranges share at least one version
func (r VersionRange) Overlaps(o VersionRange) bool {
	return r.Min <= o.Max && o.Min <= r.Max
}

// String formats the range
func (r VersionRange) String() string {
	switch {
	case r == AllVersions:
		return "all"
	case r.Max == VersionMax:
		return r.Min.String() + "+"
	default:
		return r.Min.String() + "-" + r.Max.String()
	}
}
