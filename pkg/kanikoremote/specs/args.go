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

package specs

import (
	"fmt"
	"maps"
	"slices"

	v1 "k8s.io/api/core/v1"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/constants"
	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
)

// KanikoArgs is the resolved set of instructions handed to kaniko.
type KanikoArgs struct {
	// Context is a local path inside the pod (dir://) or a remote url.
	Context      string
	Destinations []string
	Dockerfile   string
	DigestFile   string
	Target       string
	Platform     string
	Verbosity    string
	BuildArgs    []string
	Labels       []string
	// Flags holds any other scalar kaniko flag, keyed without leading dashes.
	Flags map[string]string
	// Additional args are passed through verbatim.
	Additional []string
}

func (a KanikoArgs) scalarFlags() map[string]string {
	flags := map[string]string{
		"dockerfile":  constants.DefaultDockerfilePath,
		"digest-file": constants.DefaultDigestFile,
	}
	maps.Copy(flags, a.Flags)

	set := func(key, value string) {
		if value != "" {
			flags[key] = value
		}
	}
	set("context", a.Context)
	set("dockerfile", a.Dockerfile)
	set("digest-file", a.DigestFile)
	set("target", a.Target)
	set("custom-platform", a.Platform)
	set("verbosity", a.Verbosity)
	return flags
}

// Render returns the kaniko command line for these arguments.
func (a KanikoArgs) Render() ([]string, error) {
	if len(a.Destinations) == 0 {
		return nil, kerrors.NewConfigurationError("at least one destination is required")
	}

	flags := a.scalarFlags()
	var args []string
	for _, k := range slices.Sorted(maps.Keys(flags)) {
		args = append(args, fmt.Sprintf("--%s=%s", k, flags[k]))
	}
	args = append(args, a.Additional...)
	for _, d := range a.Destinations {
		args = append(args, "--destination="+d)
	}
	for _, ba := range a.BuildArgs {
		args = append(args, "--build-arg", ba)
	}
	for _, l := range a.Labels {
		args = append(args, "--label="+l)
	}
	return args, nil
}

// SetKanikoArgs sets the builder container arguments, clearing its command so
// the image entrypoint consumes them.
func SetKanikoArgs(pod *v1.Pod, kanikoArgs KanikoArgs) (*v1.Pod, error) {
	args, err := kanikoArgs.Render()
	if err != nil {
		return nil, err
	}

	builder := container(pod, constants.BuilderContainerName)
	builder.Command = nil
	builder.Args = args
	return pod, nil
}
