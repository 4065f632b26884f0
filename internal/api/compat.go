package api

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// MinAPIVersion is the oldest backend API this client can talk to.
const MinAPIVersion = "v1.0.0"

// CheckCompatibility fetches /health and verifies the backend's API
// version is at least MinAPIVersion and on the same major version.
func (c *Client) CheckCompatibility(ctx context.Context) (*Health, error) {
	h, err := c.Health(ctx)
	if err != nil {
		return nil, err
	}
	if err := Compatible(h.APIVersion); err != nil {
		return h, err
	}
	return h, nil
}

// Compatible checks a backend API version string against MinAPIVersion.
func Compatible(version string) error {
	v := normalizeVersion(version)
	if !semver.IsValid(v) {
		return fmt.Errorf("backend reported invalid API version %q", version)
	}
	if semver.Major(v) != semver.Major(MinAPIVersion) {
		return fmt.Errorf("backend API %s is incompatible with this client (needs %s.x)", v, semver.Major(MinAPIVersion))
	}
	if semver.Compare(v, MinAPIVersion) < 0 {
		return fmt.Errorf("backend API %s is older than required %s", v, MinAPIVersion)
	}
	return nil
}

// normalizeVersion ensures the version has a "v" prefix for semver.
func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
