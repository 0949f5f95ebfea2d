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
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
	v1 "k8s.io/api/core/v1"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/constants"
	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
)

// Validate checks that the pod still has exactly one setup init container,
// exactly one builder container, and that every mount resolves to a volume.
func Validate(pod *v1.Pod) error {
	if n := countNamed(pod.Spec.InitContainers, constants.SetupContainerName); n != 1 {
		return kerrors.NewConfigurationError("builder pod must have exactly one %q init container, found %d", constants.SetupContainerName, n)
	}
	if n := countNamed(pod.Spec.Containers, constants.BuilderContainerName); n != 1 {
		return kerrors.NewConfigurationError("builder pod must have exactly one %q container, found %d", constants.BuilderContainerName, n)
	}

	volumes := map[string]bool{}
	for _, v := range pod.Spec.Volumes {
		if volumes[v.Name] {
			return kerrors.NewConfigurationError("builder pod declares volume %q twice", v.Name)
		}
		volumes[v.Name] = true
	}

	for _, c := range append(append([]v1.Container{}, pod.Spec.InitContainers...), pod.Spec.Containers...) {
		for _, vm := range c.VolumeMounts {
			if !volumes[vm.Name] {
				return kerrors.NewConfigurationError("container %q mounts undeclared volume %q", c.Name, vm.Name)
			}
		}
	}
	return nil
}

func countNamed(containers []v1.Container, name string) int {
	n := 0
	for _, c := range containers {
		if c.Name == name {
			n++
		}
	}
	return n
}

// ApplyPodOverride merges a user supplied JSON merge patch into the pod and
// re-validates it.
func ApplyPodOverride(pod *v1.Pod, override map[string]interface{}) (*v1.Pod, error) {
	if len(override) == 0 {
		return pod, nil
	}

	original, err := json.Marshal(pod)
	if err != nil {
		return nil, fmt.Errorf("marshalling pod: %w", err)
	}
	patch, err := json.Marshal(override)
	if err != nil {
		return nil, &kerrors.ConfigurationError{Msg: "builder.podOverride is not valid JSON", Err: err}
	}

	patched, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, &kerrors.ConfigurationError{Msg: "applying builder.podOverride", Err: err}
	}

	var result v1.Pod
	if err := json.Unmarshal(patched, &result); err != nil {
		return nil, &kerrors.ConfigurationError{Msg: "builder.podOverride does not produce a valid pod", Err: err}
	}
	if err := Validate(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
