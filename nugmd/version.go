package nugmd

import (
	"fmt"
	"regexp"
	"strings"
)

// versionRe is the package version grammar: a dotted numeric core of two to
// four components, then an optional prerelease label, then optional build
// metadata. The whole input must match; a revision is only valid after a patch.
var versionRe = regexp.MustCompile(
	`^(?P<major>\d+)\.(?P<minor>\d+)` +
		`(?:\.(?P<patch>\d+)(?:\.(?P<revision>\d+))?)?` +
		`(?:-(?P<label>[0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?` +
		`(?:\+(?P<metadata>[0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`,
)

// Version is a package version decomposed into its components.
//
// Numeric components hold their digit text rather than parsed integers, so
// leading zeros survive until Normalized renders them and values of any width
// are accepted. An empty string means the component was absent; the grammar
// guarantees Major and Minor are never absent, and that Revision never
// appears without Patch.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Revision string
	// Label is the prerelease label, without the leading '-'.
	Label string
	// Metadata is the build metadata, without the leading '+'. It is
	// carried through parsing but never emitted by Normalized.
	Metadata string
}

// ParseError indicates that a raw string does not match the version grammar.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed version string %q", e.Raw)
}

// ParseVersion parses raw into a Version.
// The match is anchored at both ends; anything less than a full match,
// including empty input, fails with a *ParseError.
func ParseVersion(raw string) (Version, error) {
	m := versionRe.FindStringSubmatch(raw)
	if m == nil {
		return Version{}, &ParseError{Raw: raw}
	}
	group := func(name string) string {
		return m[versionRe.SubexpIndex(name)]
	}
	return Version{
		Major:    group("major"),
		Minor:    group("minor"),
		Patch:    group("patch"),
		Revision: group("revision"),
		Label:    group("label"),
		Metadata: group("metadata"),
	}, nil
}

// Normalized returns the canonical string form of v.
//
// Major and minor are always emitted with leading zeros stripped. Patch is
// emitted whenever present, even when zero. Revision is emitted only when
// present and non-zero. The label is appended verbatim; build metadata is
// always dropped.
func (v Version) Normalized() string {
	sb := strings.Builder{}
	sb.WriteString(stripZeros(v.Major))
	sb.WriteString(".")
	sb.WriteString(stripZeros(v.Minor))
	if v.Patch != "" {
		sb.WriteString(".")
		sb.WriteString(stripZeros(v.Patch))
	}
	if v.Revision != "" {
		if rev := stripZeros(v.Revision); rev != "0" {
			sb.WriteString(".")
			sb.WriteString(rev)
		}
	}
	if v.Label != "" {
		sb.WriteString("-")
		sb.WriteString(v.Label)
	}
	return sb.String()
}

// Normalize parses raw and returns its canonical form.
func Normalize(raw string) (string, error) {
	v, err := ParseVersion(raw)
	if err != nil {
		return "", err
	}
	return v.Normalized(), nil
}

// stripZeros removes leading zeros from a digit string.
// The last zero is preserved, so "0" and "000" both come back as "0".
func stripZeros(digits string) string {
	x := strings.TrimLeft(digits, "0")
	if x == "" {
		return "0"
	}
	return x
}
