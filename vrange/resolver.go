// Package vrange decides whether a concrete version falls inside a
// vulnerability's affected-range expression, using ecosystem-appropriate
// version ordering.
package vrange

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	npm "github.com/aquasecurity/go-npm-version/pkg"
	pep440 "github.com/aquasecurity/go-pep440-version"
	"github.com/google/osv-scanner/pkg/models"

	"github.com/riskhub/riskhub-backend/normalize"
)

// Outcome is the resolver's three-valued result. Unknown is a first-class
// outcome, distinguishable from both Affected and NotAffected in every
// aggregate count, so matching gaps stay visible to operators.
type Outcome int

const (
	Unknown Outcome = iota
	Affected
	NotAffected
)

func (o Outcome) String() string {
	switch o {
	case Affected:
		return "affected"
	case NotAffected:
		return "not_affected"
	default:
		return "unknown"
	}
}

// compareFunc orders two version strings: negative when a < b.
type compareFunc func(a, b string) (int, error)

func compareSemver(a, b string) (int, error) {
	va, err := parseSemver(a)
	if err != nil {
		return 0, err
	}
	vb, err := parseSemver(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

func parseSemver(s string) (*semver.Version, error) {
	if s == "0" {
		return semver.MustParse("0.0.0"), nil
	}
	// Go stdlib versions come through as "go1.22.2".
	return semver.NewVersion(strings.TrimPrefix(s, "go"))
}

func compareNpm(a, b string) (int, error) {
	va, err := npm.NewVersion(zeroFloor(a))
	if err != nil {
		return 0, err
	}
	vb, err := npm.NewVersion(zeroFloor(b))
	if err != nil {
		return 0, err
	}
	if va.LessThan(vb) {
		return -1, nil
	}
	if va.GreaterThan(vb) {
		return 1, nil
	}
	return 0, nil
}

func comparePep440(a, b string) (int, error) {
	va, err := pep440.Parse(zeroFloor(a))
	if err != nil {
		return 0, err
	}
	vb, err := pep440.Parse(zeroFloor(b))
	if err != nil {
		return 0, err
	}
	if va.LessThan(vb) {
		return -1, nil
	}
	if va.GreaterThan(vb) {
		return 1, nil
	}
	return 0, nil
}

// zeroFloor maps the OSV "0" sentinel (from the beginning of time) onto a
// parseable version.
func zeroFloor(s string) string {
	if s == "0" {
		return "0.0.0"
	}
	return s
}

func comparerFor(ecosystem string) compareFunc {
	switch normalize.EcosystemToPurlType(ecosystem) {
	case "npm":
		return compareNpm
	case "pypi":
		return comparePep440
	default:
		return compareSemver
	}
}

// Resolve evaluates a component version against one affected entry. Disjoint
// ranges are evaluated independently; any match yields Affected. A malformed
// or incomparable version pair yields Unknown rather than Affected, and an
// Unknown from any range keeps the overall result Unknown instead of
// NotAffected.
func Resolve(version, ecosystem string, affected models.Affected) Outcome {
	if version == "" || version == normalize.VersionUnknown {
		return Unknown
	}

	// Explicit enumerated version list: lexical membership lookup, used
	// when an ecosystem's versioning scheme cannot be parsed.
	enumerated := len(affected.Versions) > 0
	if enumerated {
		for _, v := range affected.Versions {
			if v == version {
				return Affected
			}
		}
	}

	cmp := comparerFor(ecosystem)
	sawUnknown := false
	sawRange := false

	for _, vrange := range affected.Ranges {
		if vrange.Type != models.RangeEcosystem && vrange.Type != models.RangeSemVer {
			continue
		}
		sawRange = true
		switch resolveRange(version, vrange, cmp) {
		case Affected:
			return Affected
		case Unknown:
			sawUnknown = true
		}
	}

	if sawUnknown {
		return Unknown
	}
	if sawRange || enumerated {
		return NotAffected
	}
	return Unknown
}

// ResolveAny evaluates every affected entry and keeps the strongest result:
// Affected beats Unknown beats NotAffected.
func ResolveAny(version, ecosystem string, allAffected []models.Affected) Outcome {
	result := NotAffected
	if len(allAffected) == 0 {
		return Unknown
	}
	for _, affected := range allAffected {
		eco := ecosystem
		if eco == "" {
			eco = string(affected.Package.Ecosystem)
		}
		switch Resolve(version, eco, affected) {
		case Affected:
			return Affected
		case Unknown:
			result = Unknown
		}
	}
	return result
}

// segment is one contiguous affected span built from ordered range events.
type segment struct {
	introduced string
	upper      string
	inclusive  bool // last_affected closes inclusively, fixed/limit exclusively
	closed     bool
}

// resolveRange walks the ordered event sequence, pairing each introduced
// event with the next fixed/last_affected/limit event, and evaluates the
// version against every resulting segment. A segment left open (introduced
// with no upper bound) resolves to Unknown: incomplete range data must not
// produce a confident verdict either way.
func resolveRange(version string, vrange models.Range, cmp compareFunc) Outcome {
	var segments []segment
	var current *segment

	for _, event := range vrange.Events {
		switch {
		case event.Introduced != "":
			if current != nil {
				segments = append(segments, *current)
			}
			current = &segment{introduced: event.Introduced}
		case event.Fixed != "":
			if current != nil {
				current.upper = event.Fixed
				current.closed = true
				segments = append(segments, *current)
				current = nil
			}
		case event.LastAffected != "":
			if current != nil {
				current.upper = event.LastAffected
				current.inclusive = true
				current.closed = true
				segments = append(segments, *current)
				current = nil
			}
		case event.Limit != "":
			if current != nil {
				current.upper = event.Limit
				current.closed = true
				segments = append(segments, *current)
				current = nil
			}
		}
	}
	if current != nil {
		segments = append(segments, *current)
	}

	if len(segments) == 0 {
		return Unknown
	}

	sawUnknown := false
	for _, seg := range segments {
		switch evalSegment(version, seg, cmp) {
		case Affected:
			return Affected
		case Unknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return Unknown
	}
	return NotAffected
}

func evalSegment(version string, seg segment, cmp compareFunc) Outcome {
	if !seg.closed {
		return Unknown
	}

	rel, err := cmp(version, seg.introduced)
	if err != nil {
		return Unknown
	}
	if rel < 0 {
		return NotAffected
	}

	rel, err = cmp(version, seg.upper)
	if err != nil {
		return Unknown
	}
	if rel < 0 || (seg.inclusive && rel == 0) {
		return Affected
	}
	return NotAffected
}
