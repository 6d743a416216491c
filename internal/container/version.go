package container

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"ampcap/internal/diag"
)

// Version is the shader model a program was compiled for.
type Version struct {
	Major uint16
	Minor uint16
}

// HandleFromBinding is the first shader model that creates resource
// handles from a binding description instead of metadata.
var HandleFromBinding = Version{Major: 6, Minor: 6}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Semver returns v as a semantic version with a zero patch.
func (v Version) Semver() *semver.Version {
	return semver.New(uint64(v.Major), uint64(v.Minor), 0, "", "")
}

// AtLeast reports whether v is o or newer.
func (v Version) AtLeast(o Version) bool {
	return !v.Semver().LessThan(o.Semver())
}

// Satisfies checks v against a constraint such as ">= 6.5, < 6.8".
func (v Version) Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, err
	}
	return c.Check(v.Semver()), nil
}

// ParseVersion accepts "6.6", "6_6" style strings or a full semver.
func ParseVersion(s string) (Version, error) {
	s = strings.ReplaceAll(s, "_", ".")
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, diag.Errorf(diag.BlobBadVersion, diag.NoLocation, "shader model %q: %w", s, err)
	}
	if sv.Major() > 0xffff || sv.Minor() > 0xffff {
		return Version{}, diag.Errorf(diag.BlobBadVersion, diag.NoLocation, "shader model %q out of range", s)
	}
	return Version{Major: uint16(sv.Major()), Minor: uint16(sv.Minor())}, nil
}
