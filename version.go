package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/blang/semver/v4"
)

var (
	versionPattern    = regexp.MustCompile(`This is RIOT! \(Version: ([^)\s]+)\)`)
	riotVersionFormat = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?`)
	comparatorFormat  = regexp.MustCompile(`^(>=|<=|!=|==|>|<|=)?(v?\d+(?:\.\d+){0,2})$`)
)

func semverString(m []string) (string, error) {
	parts := make([]string, 3)
	for i := range parts {
		n := 0
		if m[i+1] != "" {
			var err error
			if n, err = strconv.Atoi(m[i+1]); err != nil {
				return "", err
			}
		}
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "."), nil
}

// normalizeVersion turns a RIOT release string such as "2024.04-devel-12-gabc"
// into "2024.4.0".
func normalizeVersion(v string) (string, error) {
	m := riotVersionFormat.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return "", fmt.Errorf("unrecognized version %q", v)
	}
	version, err := semverString(m)
	if err != nil {
		return "", fmt.Errorf("unrecognized version %q: %w", v, err)
	}
	return version, nil
}

func parseRequirement(requirement string) (semver.Range, error) {
	var comparators []string
	for _, field := range strings.Fields(requirement) {
		if field == "||" {
			comparators = append(comparators, field)
			continue
		}
		m := comparatorFormat.FindStringSubmatch(field)
		if m == nil {
			return nil, fmt.Errorf("invalid version requirement %q: bad comparator %q", requirement, field)
		}
		version, err := normalizeVersion(m[2])
		if err != nil {
			return nil, fmt.Errorf("invalid version requirement %q: %w", requirement, err)
		}
		comparators = append(comparators, m[1]+version)
	}
	if len(comparators) == 0 {
		return nil, fmt.Errorf("empty version requirement")
	}
	r, err := semver.ParseRange(strings.Join(comparators, " "))
	if err != nil {
		return nil, fmt.Errorf("invalid version requirement %q: %w", requirement, err)
	}
	return r, nil
}

func versionRequired(requirement, version string) bool {
	if strings.TrimSpace(requirement) == "" {
		return true
	}
	r, err := parseRequirement(requirement)
	if err != nil {
		return false
	}
	normalized, err := normalizeVersion(version)
	if err != nil {
		return false
	}
	return r(semver.MustParse(normalized))
}

func checkVersion(r semver.Range, requirement, reported string) error {
	version, err := normalizeVersion(reported)
	if err != nil {
		return err
	}
	if !r(semver.MustParse(version)) {
		return fmt.Errorf("device runs RIOT %s, which does not satisfy %q", reported, requirement)
	}
	return nil
}
