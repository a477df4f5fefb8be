package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Scheme identifies how a version string is ordered.
type Scheme string

const (
	SchemeDotted   Scheme = "dotted"
	SchemeCalendar Scheme = "calendar"
)

// BumpKind selects which component a bump increments.
type BumpKind string

const (
	BumpPatch BumpKind = "patch"
	BumpMinor BumpKind = "minor"
	BumpMajor BumpKind = "major"
)

// ParseBumpKind validates a bump name coming from flags or config.
func ParseBumpKind(s string) (BumpKind, error) {
	switch BumpKind(strings.ToLower(strings.TrimSpace(s))) {
	case BumpPatch:
		return BumpPatch, nil
	case BumpMinor:
		return BumpMinor, nil
	case BumpMajor:
		return BumpMajor, nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("invalid bump kind %q (expected patch, minor or major)", s)
}

// calendarPattern matches YYYY.N[.P].
var calendarPattern = regexp.MustCompile(`^(\d{4})\.(\d+)(?:\.(\d+))?$`)

// Version is a declared or tagged release version. Calendar versions
// (YYYY.NNNNN[.patch]) order by year, id, then patch; anything else orders
// component-wise as dotted numbers with missing components treated as zero.
type Version struct {
	raw    string
	scheme Scheme
	parts  []int
	sv     *semver.Version
}

// NewVersion parses a version string, accepting an optional "v" prefix.
func NewVersion(s string) (*Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	if raw == "" {
		return nil, fmt.Errorf("version cannot be empty")
	}
	if m := calendarPattern.FindStringSubmatch(raw); m != nil {
		parts := []int{atoi(m[1]), atoi(m[2])}
		if m[3] != "" {
			parts = append(parts, atoi(m[3]))
		}
		return &Version{raw: raw, scheme: SchemeCalendar, parts: parts}, nil
	}
	parts, err := dottedParts(raw)
	if err != nil {
		return nil, err
	}
	v := &Version{raw: raw, scheme: SchemeDotted, parts: parts}
	if sv, err := semver.NewVersion(raw); err == nil {
		v.sv = sv
	}
	return v, nil
}

// MustVersion is NewVersion for literals known to be valid.
func MustVersion(s string) *Version {
	v, err := NewVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func dottedParts(raw string) ([]int, error) {
	core := raw
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	fields := strings.Split(core, ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		digits := leadingDigits(f)
		if digits == "" {
			return nil, fmt.Errorf("invalid version %q: component %q is not numeric", raw, f)
		}
		parts = append(parts, atoi(digits))
	}
	return parts, nil
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Scheme reports the ordering scheme of the version.
func (v *Version) Scheme() Scheme {
	return v.scheme
}

// String returns the version without a "v" prefix.
func (v *Version) String() string {
	return v.raw
}

// Tag returns the release tag name for the version.
func (v *Version) Tag() string {
	return "v" + v.raw
}

// Prerelease reports a semver prerelease suffix such as -rc1.
func (v *Version) Prerelease() bool {
	return v.sv != nil && v.sv.Prerelease() != ""
}

// Compare returns -1, 0 or 1.
func (v *Version) Compare(other *Version) int {
	n := max(len(v.parts), len(other.parts))
	for i := range n {
		a, b := component(v.parts, i), component(other.parts, i)
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	// numeric cores are equal; let semver order prereleases (1.0.0-rc1 < 1.0.0)
	if v.sv != nil && other.sv != nil {
		return v.sv.Compare(other.sv)
	}
	return 0
}

func component(parts []int, i int) int {
	if i < len(parts) {
		return parts[i]
	}
	return 0
}

// Equal reports whether both versions order the same.
func (v *Version) Equal(other *Version) bool {
	return v.Compare(other) == 0
}

// GreaterThan reports whether v orders after other.
func (v *Version) GreaterThan(other *Version) bool {
	return v.Compare(other) > 0
}

// Bump returns the next version of the given kind. now is only consulted
// for calendar versions, where a minor or major bump moves to the current year.
func (v *Version) Bump(kind BumpKind, now time.Time) (*Version, error) {
	if v.scheme == SchemeCalendar {
		return v.bumpCalendar(kind, now)
	}
	return v.bumpDotted(kind)
}

func (v *Version) bumpCalendar(kind BumpKind, now time.Time) (*Version, error) {
	year, id := v.parts[0], v.parts[1]
	width := len(strings.Split(v.raw, ".")[1])
	switch kind {
	case BumpPatch:
		return NewVersion(fmt.Sprintf("%04d.%0*d.%d", year, width, id, component(v.parts, 2)+1))
	case BumpMinor, BumpMajor:
		if now.Year() != year {
			return NewVersion(fmt.Sprintf("%04d.%0*d", now.Year(), width, 1))
		}
		return NewVersion(fmt.Sprintf("%04d.%0*d", year, width, id+1))
	}
	return nil, fmt.Errorf("unsupported bump kind %q", kind)
}

func (v *Version) bumpDotted(kind BumpKind) (*Version, error) {
	if v.sv != nil {
		var next semver.Version
		switch kind {
		case BumpPatch:
			next = v.sv.IncPatch()
		case BumpMinor:
			next = v.sv.IncMinor()
		case BumpMajor:
			next = v.sv.IncMajor()
		default:
			return nil, fmt.Errorf("unsupported bump kind %q", kind)
		}
		return NewVersion(next.String())
	}
	major, minor, patch := component(v.parts, 0), component(v.parts, 1), component(v.parts, 2)
	switch kind {
	case BumpPatch:
		patch++
	case BumpMinor:
		minor, patch = minor+1, 0
	case BumpMajor:
		major, minor, patch = major+1, 0, 0
	default:
		return nil, fmt.Errorf("unsupported bump kind %q", kind)
	}
	return NewVersion(fmt.Sprintf("%d.%d.%d", major, minor, patch))
}
