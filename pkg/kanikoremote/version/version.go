/*
Copyright 2024 The kaniko-remote Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/blang/semver"
)

var version, gitCommit, buildDate string
var platform = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)

type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the version and buildtime information about the binary.
// The values are injected at build time with -ldflags.
func Get() *Info {
	return &Info{
		Version:   orDefault(version, "v0.0.0-dev"),
		GitCommit: gitCommit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  platform,
	}
}

func orDefault(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

// ParseVersion parses a version string into a semver.Version.
func ParseVersion(version string) (semver.Version, error) {
	// Strip the leading 'v' in our version strings
	v, err := semver.Parse(strings.TrimLeft(strings.TrimSpace(version), "v"))
	if err != nil {
		return semver.Version{}, fmt.Errorf("parsing semver: %w", err)
	}
	return v, nil
}

// LabelValue renders the version so it is accepted as a kubernetes label value.
func LabelValue(version string) string {
	v, err := ParseVersion(version)
	if err != nil {
		return "unknown"
	}
	s := v.String()
	s = strings.NewReplacer("+", "_", "/", "_").Replace(s)
	if len(s) > 63 {
		s = s[:63]
	}
	return strings.Trim(s, "-_.")
}
