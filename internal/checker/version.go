package checker

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Release identifies an installed or published build by its display name and
// optional numeric version code.
type Release struct {
	Name string
	Code int
}

// hasCode reports whether the release carries a usable version code.
func (r Release) hasCode() bool { return r.Code > 0 }

// unversioned builds never match a published release.
func (r Release) unversioned() bool { return r.Name == "" || r.Name == "dev" }

// Newer reports whether remote supersedes current. Version codes decide when
// both sides have one; otherwise the names are compared as semantic versions
// (a leading "v" is accepted). A current build named "" or "dev" is always
// behind.
func Newer(current, remote Release) (bool, error) {
	if current.hasCode() && remote.hasCode() {
		return remote.Code > current.Code, nil
	}
	if current.unversioned() {
		return true, nil
	}

	cv, err := semver.NewVersion(current.Name)
	if err != nil {
		return false, fmt.Errorf("current version %q: %w", current.Name, err)
	}
	rv, err := semver.NewVersion(remote.Name)
	if err != nil {
		return false, fmt.Errorf("published version %q: %w", remote.Name, err)
	}
	return rv.GreaterThan(cv), nil
}
