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

package auth

import (
	"github.com/docker/cli/cli/config/configfile"
	v1 "k8s.io/api/core/v1"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/config"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/specs"
)

type mount struct {
	name      string
	mountPath string
}

// podOnly only touches the pod: env and volumes from secrets and config maps,
// literal env vars and an optional service account.
type podOnly struct {
	url                   string
	serviceAccount        string
	envFromSecrets        []string
	envFromConfigMaps     []string
	envVars               []config.EnvEntry
	volumesFromSecrets    []mount
	volumesFromConfigMaps []mount
}

// newPodOnly expects entries already validated while parsing the configuration.
func newPodOnly(opts config.PodOnlyAuth) *podOnly {
	p := &podOnly{
		url:            opts.URL,
		serviceAccount: opts.ServiceAccount,
	}
	for _, env := range opts.Env {
		switch {
		case env.FromSecret != "":
			p.envFromSecrets = append(p.envFromSecrets, env.FromSecret)
		case env.FromConfigMap != "":
			p.envFromConfigMaps = append(p.envFromConfigMaps, env.FromConfigMap)
		default:
			p.envVars = append(p.envVars, env)
		}
	}
	for _, vol := range opts.Volumes {
		if vol.FromSecret != "" {
			p.volumesFromSecrets = append(p.volumesFromSecrets, mount{name: vol.FromSecret, mountPath: vol.MountPath})
		} else {
			p.volumesFromConfigMaps = append(p.volumesFromConfigMaps, mount{name: vol.FromConfigMap, mountPath: vol.MountPath})
		}
	}
	return p
}

func (p *podOnly) URL() string            { return p.url }
func (p *podOnly) ServiceAccount() string { return p.serviceAccount }

func (p *podOnly) AppendAuthToPod(pod *v1.Pod) *v1.Pod {
	if p.serviceAccount != "" {
		pod = specs.ReplaceServiceAccount(pod, p.serviceAccount)
	}
	for _, cm := range p.envFromConfigMaps {
		pod = specs.AppendEnvFromConfigMap(pod, cm)
	}
	for _, secret := range p.envFromSecrets {
		pod = specs.AppendEnvFromSecret(pod, secret)
	}
	for _, env := range p.envVars {
		pod = specs.AppendEnvVar(pod, env.Name, env.Value)
	}
	for _, m := range p.volumesFromConfigMaps {
		pod = specs.AppendVolumeFromConfigMap(pod, m.name, m.mountPath)
	}
	for _, m := range p.volumesFromSecrets {
		pod = specs.AppendVolumeFromSecret(pod, m.name, m.mountPath)
	}
	return pod
}

func (p *podOnly) AppendAuthToDockerConfig(dockerConfig *configfile.ConfigFile) *configfile.ConfigFile {
	return dockerConfig
}
