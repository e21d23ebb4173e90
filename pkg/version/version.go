// Package version holds the build information of the binaries, injected at link time with -ldflags -X.
package version

import (
	"encoding/json"
	"time"

	"github.com/blang/semver"
)

const dateFormat = time.RFC3339

var (
	// Version is the semantic version of this build.
	Version = "0.1.0-dev"
	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"
	buildDate string
)

func init() {
	if len(buildDate) != 0 {
		_, err := time.Parse(dateFormat, buildDate)
		if err != nil {
			panic(err)
		}
	}
	if _, err := semver.Parse(Version); err != nil {
		panic(err)
	}
}

type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"gitCommit"`
	BuildDate time.Time `json:"buildDate,omitempty"`
}

func VersionInfo() Info {
	return Info{
		GitCommit: GitCommit,
		Version:   Version,
		BuildDate: BuildDate(),
	}
}

// Semver returns the parsed Version.
func Semver() semver.Version {
	return semver.MustParse(Version)
}

func (m Info) JSON() string {
	v, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return string(v)
}

// BuildDate returns the build date, or the zero time if it was not provided.
func BuildDate() time.Time {
	if len(buildDate) == 0 {
		return time.Time{}
	}
	t, _ := time.Parse(dateFormat, buildDate)
	return t
}
