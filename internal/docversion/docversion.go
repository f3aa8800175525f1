// Package docversion gates ledger documents on their format version.
package docversion

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Check returns an error when version is not parseable or its major number
// is above supported's. An empty version is treated as supported.
func Check(version, supported string) error {
	if version == "" {
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("parse document version %q: %w", version, err)
	}
	max, err := semver.NewVersion(supported)
	if err != nil {
		return fmt.Errorf("parse supported version %q: %w", supported, err)
	}
	if v.Major() > max.Major() {
		return fmt.Errorf("document version %s is newer than supported %s", v, max)
	}
	return nil
}
