package iosutil

import (
	"errors"
	"strconv"
	"strings"
)

// IOSVersion specifies the version of an iOS device.
type IOSVersion struct {
	Major int
	Minor int
}

// ParseIOSVersion parses the major.minor version for an iOS device. A bare major version and a
// trailing patch component are accepted.
func ParseIOSVersion(v string) (IOSVersion, error) {
	parts := strings.Split(strings.TrimSpace(v), ".")

	if len(parts) > 3 || parts[0] == "" {
		return IOSVersion{}, errors.New("expected major, major.minor or major.minor.patch format")
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return IOSVersion{}, errors.New("major version is not an integer")
	}

	minor := 0
	if len(parts) > 1 {
		if minor, err = strconv.Atoi(parts[1]); err != nil {
			return IOSVersion{}, errors.New("minor version is not an integer")
		}
	}

	version := IOSVersion{
		Major: major,
		Minor: minor,
	}
	return version, nil
}

// EqualOrGreater returns true if iOS device version is equal or greater to the desired version, using semantic versioning.
func (v IOSVersion) EqualOrGreater(major, minor int) bool {
	if v.Major == major {
		return v.Minor >= minor
	}

	return v.Major > major
}

// Equal returns true if iOS device version is equal to the desired version.
func (v IOSVersion) Equal(major, minor int) bool {
	return v.Major == major && v.Minor == minor
}

// VersionClassification describes iOS version ranges which require special processing.
type VersionClassification int

// Values of VersionClassification.
const (
	VersionUnknown VersionClassification = iota
	VersionBelow14
	Version140
	Version141
	Version142OrGreater
)

// DetectVersionClassification detects iOS version ranges which require special processing.
func DetectVersionClassification(v string) VersionClassification {
	iosVersion, err := ParseIOSVersion(v)
	if err != nil {
		return VersionUnknown
	}

	if iosVersion.Equal(14, 0) {
		return Version140
	}

	if iosVersion.Equal(14, 1) {
		return Version141
	}

	if iosVersion.EqualOrGreater(14, 2) {
		return Version142OrGreater
	}

	return VersionBelow14
}
