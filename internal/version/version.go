// Package version carries the build fingerprint of the filament binary.
// The variables can be overridden at build time via -ldflags.
package version

import (
	"fmt"
	"strings"

	semver "github.com/Masterminds/semver/v3"
	"github.com/fatih/color"
)

var (
	// Version is the semantic version of the compiler.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var partColors = []*color.Color{
	color.New(color.FgYellow, color.Bold),
	color.New(color.FgGreen, color.Bold),
	color.New(color.FgBlue, color.Bold),
}

// Colored renders Version with one color per major, minor and patch part.
// A pre-release suffix is left uncolored.
func Colored() string {
	core, suffix, hasSuffix := strings.Cut(Version, "-")
	parts := strings.Split(core, ".")
	for i, p := range parts {
		if i < len(partColors) {
			parts[i] = partColors[i].Sprint(p)
		}
	}
	out := strings.Join(parts, ".")
	if hasSuffix {
		out += "-" + suffix
	}
	return out
}

// Full is the version followed by the commit and the build date when they
// are known.
func Full() string {
	var b strings.Builder
	b.WriteString(Version)
	if GitCommit != "" {
		b.WriteString(" (" + GitCommit + ")")
	}
	if BuildDate != "" {
		b.WriteString(" built " + BuildDate)
	}
	return b.String()
}

// Satisfies reports whether Version lies in the range constraint describes.
// A pre-release build is compared as its release, so 0.2.0-dev satisfies
// ">= 0.2".
func Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	v, err := semver.NewVersion(Version)
	if err != nil {
		return false, fmt.Errorf("invalid compiler version %q: %w", Version, err)
	}
	release := semver.New(v.Major(), v.Minor(), v.Patch(), "", "")
	return c.Check(release), nil
}
