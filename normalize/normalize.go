// Package normalize canonicalizes component package identity so that SBOM
// components and vulnerability advisories can be compared regardless of the
// document format they came from.
package normalize

import (
	"fmt"
	"strings"

	"github.com/package-url/packageurl-go"
)

// VersionUnknown is the sentinel stored when a component carries no usable
// version evidence. It is never the empty string so downstream matching can
// special-case it: excluded from range resolution, still eligible for
// name/ecosystem-only advisories such as EOL tracking.
const VersionUnknown = "unknown"

// Key is the canonical comparable identity of a component.
type Key struct {
	Ecosystem string
	Name      string
	Version   string
}

// ecosystemToPurlType maps feed ecosystem labels onto purl types so that
// advisories and SBOM components land on the same hub key.
var ecosystemToPurlType = map[string]string{
	"npm":        "npm",
	"PyPI":       "pypi",
	"Maven":      "maven",
	"Go":         "golang",
	"NuGet":      "nuget",
	"RubyGems":   "gem",
	"crates.io":  "cargo",
	"Packagist":  "composer",
	"Pub":        "pub",
	"CocoaPods":  "cocoapods",
	"Hex":        "hex",
	"Alpine":     "apk",
	"Wolfi":      "apk",
	"Chainguard": "apk",
	"Debian":     "deb",
	"Ubuntu":     "deb",
}

// caseInsensitiveEcosystems lists registries that treat package names
// case-insensitively. Everything else compares case-sensitively (maven
// groupId:artifactId, go module paths).
var caseInsensitiveEcosystems = map[string]bool{
	"npm":  true,
	"pypi": true,
}

// EcosystemToPurlType converts a feed ecosystem label to its purl type.
func EcosystemToPurlType(ecosystem string) string {
	if t, ok := ecosystemToPurlType[ecosystem]; ok {
		return t
	}
	for k, v := range ecosystemToPurlType {
		if strings.EqualFold(k, ecosystem) {
			return v
		}
	}
	return strings.ToLower(ecosystem)
}

// FoldName lowercases the name for case-insensitive registries and leaves it
// untouched otherwise.
func FoldName(purlType, name string) string {
	if caseInsensitiveEcosystems[purlType] {
		return strings.ToLower(name)
	}
	return name
}

// Component canonicalizes a raw SBOM component into a Key plus, when
// derivable, a cleaned full purl and a versionless base purl.
func Component(name, version, declaredType, rawPurl string) (Key, string, string) {
	key := Key{
		Ecosystem: EcosystemToPurlType(declaredType),
		Name:      name,
		Version:   strings.TrimSpace(version),
	}

	var fullPurl, basePurl string
	if rawPurl != "" {
		if parsed, err := packageurl.FromString(rawPurl); err == nil {
			key.Ecosystem = EcosystemToPurlType(parsed.Type)
			key.Name = joinName(parsed.Namespace, parsed.Name)
			if parsed.Version != "" {
				key.Version = parsed.Version
			}
			fullPurl = cleanPurl(parsed)
			basePurl = basePurlOf(parsed)
		}
	}

	key.Name = FoldName(key.Ecosystem, key.Name)
	if key.Version == "" {
		key.Version = VersionUnknown
	}
	if basePurl == "" && key.Name != "" {
		basePurl = BasePurlFromParts(key.Ecosystem, "", key.Name)
	}

	return key, fullPurl, basePurl
}

// HasVersionEvidence reports whether the key carries a concrete version.
func (k Key) HasVersionEvidence() bool {
	return k.Version != "" && k.Version != VersionUnknown
}

// Equal compares two keys using the ecosystem's case rules.
func (k Key) Equal(other Key) bool {
	if k.Ecosystem != other.Ecosystem {
		return false
	}
	return FoldName(k.Ecosystem, k.Name) == FoldName(other.Ecosystem, other.Name)
}

// BasePurlFromParts builds a versionless base purl from an ecosystem label,
// optional namespace and name. This is the hub key shared by SBOM components
// and advisory packages.
func BasePurlFromParts(ecosystem, namespace, name string) string {
	purlType := EcosystemToPurlType(ecosystem)
	if namespace != "" {
		return strings.ToLower(fmt.Sprintf("pkg:%s/%s/%s", purlType, namespace, name))
	}
	return strings.ToLower(fmt.Sprintf("pkg:%s/%s", purlType, name))
}

// BasePurl extracts the versionless base purl of a purl string.
func BasePurl(purlStr string) (string, error) {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		return "", err
	}
	return basePurlOf(parsed), nil
}

// CleanPurl strips qualifiers from a purl but keeps the subpath, which can
// carry module identity (e.g. #v2 for Go modules).
func CleanPurl(purlStr string) (string, error) {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		return "", err
	}
	return cleanPurl(parsed), nil
}

func cleanPurl(parsed packageurl.PackageURL) string {
	cleaned := packageurl.PackageURL{
		Type:      parsed.Type,
		Namespace: parsed.Namespace,
		Name:      parsed.Name,
		Version:   parsed.Version,
		Subpath:   parsed.Subpath,
	}
	return strings.ToLower(cleaned.ToString())
}

func basePurlOf(parsed packageurl.PackageURL) string {
	base := packageurl.PackageURL{
		Type:      EcosystemToPurlType(parsed.Type),
		Namespace: parsed.Namespace,
		Name:      parsed.Name,
	}
	return strings.ToLower(base.ToString())
}

func joinName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}

// SanitizeKey makes a document key safe for ArangoDB: no spaces, slashes or
// brackets.
func SanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	replacer := strings.NewReplacer(
		" ", "-",
		"/", "-",
		"[", "",
		"]", "",
		"(", "",
		")", "",
	)
	return replacer.Replace(key)
}
