package engine

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)

// checkVersion runs `<binary> --version` and enforces the minimum.
func checkVersion(binary, minVersion string) error {
	min, err := semver.NewVersion(minVersion)
	if err != nil {
		return fmt.Errorf("invalid min_version %q: %w", minVersion, err)
	}

	out, err := exec.Command(binary, "--version").Output()
	if err != nil {
		return fmt.Errorf("probe agent version: %w", err)
	}

	got, err := parseVersionOutput(string(out))
	if err != nil {
		return err
	}

	if got.LessThan(min) {
		return fmt.Errorf("agent version %s is older than required %s", got, min)
	}
	return nil
}

// parseVersionOutput extracts a semver from arbitrary version output
// such as "claude 2.1.0 (stable)".
func parseVersionOutput(out string) (*semver.Version, error) {
	match := versionPattern.FindString(out)
	if match == "" {
		return nil, fmt.Errorf("no version in output %q", strings.TrimSpace(out))
	}
	return semver.NewVersion(match)
}
