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

	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/kaniko-remote/kaniko-remote/testutil"
)

func defaultOptions() PodOptions {
	return PodOptions{
		Name:        "alice",
		CPU:         "1",
		Memory:      "1G",
		KanikoImage: "gcr.io/kaniko-project/executor:latest",
		SetupImage:  "busybox:stable",
	}
}

func TestGeneratePodSpec(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		pod, err := GeneratePodSpec(defaultOptions())

		configMount := v1.VolumeMount{Name: "config", MountPath: "/kaniko/.docker"}
		resources := v1.ResourceList{
			v1.ResourceCPU:    resource.MustParse("1"),
			v1.ResourceMemory: resource.MustParse("1G"),
		}
		expected := &v1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				GenerateName: "kaniko-remote-alice-",
				Labels: map[string]string{
					"app.kubernetes.io/name":      "kaniko-remote",
					"app.kubernetes.io/component": "builder",
					"kaniko-remote/builder-name":  "alice",
					"kaniko-remote/version":       "0.0.0-dev",
				},
				Annotations: map[string]string{
					"kaniko-remote/version": "v0.0.0-dev",
				},
			},
			Spec: v1.PodSpec{
				AutomountServiceAccountToken: ptr.To(false),
				RestartPolicy:                v1.RestartPolicyNever,
				InitContainers: []v1.Container{{
					Name:            "setup",
					Image:           "busybox:stable",
					ImagePullPolicy: v1.PullIfNotPresent,
					Command:         []string{"sh", "-c", "until [ -e /kaniko/.docker/config.json ]; do sleep 1; done"},
					VolumeMounts:    []v1.VolumeMount{configMount},
				}},
				Containers: []v1.Container{{
					Name:            "builder",
					Image:           "gcr.io/kaniko-project/executor:latest",
					ImagePullPolicy: v1.PullIfNotPresent,
					VolumeMounts:    []v1.VolumeMount{configMount},
					Resources: v1.ResourceRequirements{
						Requests: resources,
						Limits:   resources,
					},
				}},
				Volumes: []v1.Volume{{
					Name:         "config",
					VolumeSource: v1.VolumeSource{EmptyDir: &v1.EmptyDirVolumeSource{}},
				}},
			},
		}

		t.CheckNoError(err)
		t.CheckDeepEqual(expected, pod)
		t.CheckNoError(Validate(pod))
	})
}

func TestGeneratePodSpecReservedKeysWin(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		opts := defaultOptions()
		opts.Labels = map[string]string{
			"kaniko-remote/builder-name": "mallory",
			"app.kubernetes.io/name":     "spoofed",
			"team":                       "infra",
		}
		opts.Annotations = map[string]string{
			"kaniko-remote/version": "v99",
			"owner":                 "alice@example.com",
		}

		pod, err := GeneratePodSpec(opts)

		t.CheckNoError(err)
		t.CheckDeepEqual("alice", pod.Labels["kaniko-remote/builder-name"])
		t.CheckDeepEqual("kaniko-remote", pod.Labels["app.kubernetes.io/name"])
		t.CheckDeepEqual("infra", pod.Labels["team"])
		t.CheckDeepEqual("v0.0.0-dev", pod.Annotations["kaniko-remote/version"])
		t.CheckDeepEqual("alice@example.com", pod.Annotations["owner"])
		t.CheckDeepEqual(map[string]string{"kaniko-remote/builder-name": "mallory", "app.kubernetes.io/name": "spoofed", "team": "infra"}, opts.Labels)
	})
}

func TestGeneratePodSpecErrors(t *testing.T) {
	tests := []struct {
		description string
		cpu         string
		memory      string
	}{
		{description: "invalid cpu", cpu: "lots", memory: "1G"},
		{description: "invalid memory", cpu: "1", memory: "1 gig"},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			opts := defaultOptions()
			opts.CPU = test.cpu
			opts.Memory = test.memory

			_, err := GeneratePodSpec(opts)

			t.CheckError(true, err)
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "alice", expected: "alice"},
		{in: "Alice.Smith", expected: "alice-smith"},
		{in: "DOMAIN\\bob", expected: "domain-bob"},
		{in: "__", expected: "anonymous"},
		{in: "", expected: "anonymous"},
	}
	for _, test := range tests {
		testutil.Run(t, test.in, func(t *testutil.T) {
			t.CheckDeepEqual(test.expected, sanitize(test.in))
		})
	}
}

func TestMountContextForExecTransfer(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		pod, err := GeneratePodSpec(defaultOptions())
		t.CheckNoError(err)

		pod = MountContextForExecTransfer(pod)

		contextMount := v1.VolumeMount{Name: "context", MountPath: "/workspace"}
		t.CheckDeepEqual(contextMount, pod.Spec.InitContainers[0].VolumeMounts[1])
		t.CheckDeepEqual(contextMount, pod.Spec.Containers[0].VolumeMounts[1])
		t.CheckDeepEqual(2, len(pod.Spec.Volumes))
		t.CheckDeepEqual("context", pod.Spec.Volumes[1].Name)
		t.CheckNoError(Validate(pod))
	})
}
