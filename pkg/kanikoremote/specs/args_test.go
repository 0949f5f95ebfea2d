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
	"testing"

	"github.com/kaniko-remote/kaniko-remote/testutil"
)

func TestSetKanikoArgs(t *testing.T) {
	tests := []struct {
		description string
		args        KanikoArgs
		expected    []string
		shouldErr   bool
	}{
		{
			description: "no destinations",
			args:        KanikoArgs{Context: "dir"},
			shouldErr:   true,
		},
		{
			description: "defaults",
			args:        KanikoArgs{Context: "dir", Destinations: []string{"tag"}},
			expected: []string{
				"--context=dir",
				"--digest-file=/dev/termination-log",
				"--dockerfile=Dockerfile",
				"--destination=tag",
			},
		},
		{
			description: "all options",
			args: KanikoArgs{
				Context:      "dir:///workspace",
				Destinations: []string{"r.io/a:1", "r.io/a:latest"},
				Dockerfile:   "build/Dockerfile",
				Target:       "release",
				Platform:     "linux/arm64",
				Verbosity:    "debug",
				BuildArgs:    []string{"A=1", "B"},
				Labels:       []string{"team=infra"},
				Flags:        map[string]string{"snapshot-mode": "redo"},
				Additional:   []string{"--use-new-run"},
			},
			expected: []string{
				"--context=dir:///workspace",
				"--custom-platform=linux/arm64",
				"--digest-file=/dev/termination-log",
				"--dockerfile=build/Dockerfile",
				"--snapshot-mode=redo",
				"--target=release",
				"--verbosity=debug",
				"--use-new-run",
				"--destination=r.io/a:1",
				"--destination=r.io/a:latest",
				"--build-arg", "A=1",
				"--build-arg", "B",
				"--label=team=infra",
			},
		},
		{
			description: "named fields win over raw flags",
			args: KanikoArgs{
				Context:      "dir",
				Destinations: []string{"tag"},
				Dockerfile:   "Other",
				Flags:        map[string]string{"dockerfile": "Ignored"},
			},
			expected: []string{
				"--context=dir",
				"--digest-file=/dev/termination-log",
				"--dockerfile=Other",
				"--destination=tag",
			},
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			pod, err := GeneratePodSpec(defaultOptions())
			t.CheckNoError(err)
			pod.Spec.Containers[0].Command = []string{"/kaniko/executor"}

			pod, err = SetKanikoArgs(pod, test.args)

			t.CheckError(test.shouldErr, err)
			if !test.shouldErr {
				t.CheckDeepEqual(test.expected, pod.Spec.Containers[0].Args)
				t.CheckEmpty(pod.Spec.Containers[0].Command)
			}
		})
	}
}
