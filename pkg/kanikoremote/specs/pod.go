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
	"regexp"
	"strings"

	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/constants"
	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/version"
)

// PodOptions holds what is needed to generate a builder pod.
type PodOptions struct {
	// Name identifies the builder instance, usually the local user.
	Name        string
	CPU         string
	Memory      string
	KanikoImage string
	SetupImage  string
	Labels      map[string]string
	Annotations map[string]string
}

// GeneratePodSpec returns a pod with a setup init container that waits for the
// docker config to be staged and a builder container running kaniko.
func GeneratePodSpec(opts PodOptions) (*v1.Pod, error) {
	resources, err := resourceRequirements(opts.CPU, opts.Memory)
	if err != nil {
		return nil, err
	}

	name := sanitize(opts.Name)
	v := version.Get().Version

	labels := map[string]string{}
	maps.Copy(labels, opts.Labels)
	maps.Copy(labels, map[string]string{
		constants.Labels.Name:        constants.AppName,
		constants.Labels.Component:   constants.ComponentName,
		constants.Labels.BuilderName: name,
		constants.Labels.Version:     version.LabelValue(v),
	})

	annotations := map[string]string{}
	maps.Copy(annotations, opts.Annotations)
	annotations[constants.Labels.Version] = v

	vm := v1.VolumeMount{
		Name:      constants.DockerConfigVolumeName,
		MountPath: constants.DockerConfigMountPath,
	}

	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: fmt.Sprintf("%s-%s-", constants.AppName, name),
			Labels:       labels,
			Annotations:  annotations,
		},
		Spec: v1.PodSpec{
			AutomountServiceAccountToken: ptr.To(false),
			RestartPolicy:                v1.RestartPolicyNever,
			InitContainers: []v1.Container{{
				Name:            constants.SetupContainerName,
				Image:           opts.SetupImage,
				ImagePullPolicy: v1.PullIfNotPresent,
				Command:         constants.SetupCommand,
				VolumeMounts:    []v1.VolumeMount{vm},
			}},
			Containers: []v1.Container{{
				Name:            constants.BuilderContainerName,
				Image:           opts.KanikoImage,
				ImagePullPolicy: v1.PullIfNotPresent,
				VolumeMounts:    []v1.VolumeMount{vm},
				Resources:       resources,
			}},
			Volumes: []v1.Volume{emptyDir(vm.Name)},
		},
	}, nil
}

// MountContextForExecTransfer adds the workspace volume the local context is
// streamed into. It must be called at most once per pod.
func MountContextForExecTransfer(pod *v1.Pod) *v1.Pod {
	vm := v1.VolumeMount{
		Name:      constants.ContextVolumeName,
		MountPath: constants.ContextMountPath,
	}
	setup := container(pod, constants.SetupContainerName)
	setup.VolumeMounts = append(setup.VolumeMounts, vm)
	builder := container(pod, constants.BuilderContainerName)
	builder.VolumeMounts = append(builder.VolumeMounts, vm)

	pod.Spec.Volumes = append(pod.Spec.Volumes, emptyDir(vm.Name))
	return pod
}

func emptyDir(name string) v1.Volume {
	return v1.Volume{
		Name: name,
		VolumeSource: v1.VolumeSource{
			EmptyDir: &v1.EmptyDirVolumeSource{},
		},
	}
}

func resourceRequirements(cpu, memory string) (v1.ResourceRequirements, error) {
	list := v1.ResourceList{}

	if cpu != "" {
		q, err := resource.ParseQuantity(cpu)
		if err != nil {
			return v1.ResourceRequirements{}, &kerrors.ConfigurationError{Msg: fmt.Sprintf("builder.cpu %q is not a valid quantity", cpu), Err: err}
		}
		list[v1.ResourceCPU] = q
	}
	if memory != "" {
		q, err := resource.ParseQuantity(memory)
		if err != nil {
			return v1.ResourceRequirements{}, &kerrors.ConfigurationError{Msg: fmt.Sprintf("builder.memory %q is not a valid quantity", memory), Err: err}
		}
		list[v1.ResourceMemory] = q
	}

	if len(list) == 0 {
		return v1.ResourceRequirements{}, nil
	}
	return v1.ResourceRequirements{
		Requests: list,
		Limits:   list.DeepCopy(),
	}, nil
}

// container returns the named container, looking at init containers too.
func container(pod *v1.Pod, name string) *v1.Container {
	for i := range pod.Spec.InitContainers {
		if pod.Spec.InitContainers[i].Name == name {
			return &pod.Spec.InitContainers[i]
		}
	}
	for i := range pod.Spec.Containers {
		if pod.Spec.Containers[i].Name == name {
			return &pod.Spec.Containers[i]
		}
	}
	panic(fmt.Sprintf("pod has no %q container", name))
}

var invalidNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// sanitize turns a user name into something usable in a pod name and label value.
func sanitize(s string) string {
	s = invalidNameChars.ReplaceAllString(strings.ToLower(s), "-")
	if len(s) > 40 {
		s = s[:40]
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return "anonymous"
	}
	return s
}
