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
	v1 "k8s.io/api/core/v1"
	"k8s.io/utils/ptr"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/constants"
)

// The functions below only touch the builder container and always append.

func AppendEnvFromSecret(pod *v1.Pod, secretName string) *v1.Pod {
	builder := container(pod, constants.BuilderContainerName)
	builder.EnvFrom = append(builder.EnvFrom, v1.EnvFromSource{
		SecretRef: &v1.SecretEnvSource{
			LocalObjectReference: v1.LocalObjectReference{Name: secretName},
		},
	})
	return pod
}

func AppendEnvFromConfigMap(pod *v1.Pod, configMapName string) *v1.Pod {
	builder := container(pod, constants.BuilderContainerName)
	builder.EnvFrom = append(builder.EnvFrom, v1.EnvFromSource{
		ConfigMapRef: &v1.ConfigMapEnvSource{
			LocalObjectReference: v1.LocalObjectReference{Name: configMapName},
		},
	})
	return pod
}

func AppendEnvVar(pod *v1.Pod, name, value string) *v1.Pod {
	builder := container(pod, constants.BuilderContainerName)
	builder.Env = append(builder.Env, v1.EnvVar{Name: name, Value: value})
	return pod
}

// AppendVolumeFromSecret mounts a secret read-only into the builder container.
func AppendVolumeFromSecret(pod *v1.Pod, secretName, mountPath string) *v1.Pod {
	return addVolume(pod, "secret-"+secretName, mountPath, v1.VolumeSource{
		Secret: &v1.SecretVolumeSource{SecretName: secretName},
	})
}

// AppendVolumeFromConfigMap mounts a config map read-only into the builder container.
func AppendVolumeFromConfigMap(pod *v1.Pod, configMapName, mountPath string) *v1.Pod {
	return addVolume(pod, "configmap-"+configMapName, mountPath, v1.VolumeSource{
		ConfigMap: &v1.ConfigMapVolumeSource{
			LocalObjectReference: v1.LocalObjectReference{Name: configMapName},
		},
	})
}

// ReplaceServiceAccount binds the pod to a service account and mounts its token.
func ReplaceServiceAccount(pod *v1.Pod, serviceAccountName string) *v1.Pod {
	pod.Spec.ServiceAccountName = serviceAccountName
	pod.Spec.AutomountServiceAccountToken = ptr.To(true)
	return pod
}

func addVolume(pod *v1.Pod, name, mountPath string, source v1.VolumeSource) *v1.Pod {
	builder := container(pod, constants.BuilderContainerName)
	builder.VolumeMounts = append(builder.VolumeMounts, v1.VolumeMount{
		Name:      name,
		MountPath: mountPath,
		ReadOnly:  true,
	})

	// The same source mounted twice shares one volume.
	for _, v := range pod.Spec.Volumes {
		if v.Name == name {
			return pod
		}
	}
	pod.Spec.Volumes = append(pod.Spec.Volumes, v1.Volume{
		Name:         name,
		VolumeSource: source,
	})
	return pod
}
