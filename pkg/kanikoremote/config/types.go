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

package config

// Config is the parsed content of a .kaniko-remote.yaml file.
type Config struct {
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Builder    BuilderConfig    `yaml:"builder"`
	Tags       TagsConfig       `yaml:"tags"`
	Auth       []AuthConfig     `yaml:"auth"`
}

type KubernetesConfig struct {
	Kubeconfig string `yaml:"kubeconfig"`
	Context    string `yaml:"context"`
	Namespace  string `yaml:"namespace"`
}

type BuilderConfig struct {
	// Name identifies the builder pod, defaults to the local user name.
	Name                  string            `yaml:"name"`
	CPU                   string            `yaml:"cpu"`
	Memory                string            `yaml:"memory"`
	KanikoImage           string            `yaml:"kanikoImage"`
	SetupImage            string            `yaml:"setupImage"`
	AdditionalLabels      map[string]string `yaml:"additionalLabels"`
	AdditionalAnnotations map[string]string `yaml:"additionalAnnotations"`
	AdditionalKanikoArgs  []string          `yaml:"additionalKanikoArgs"`
	// PodStartTimeout is in seconds.
	PodStartTimeout       int  `yaml:"podStartTimeout"`
	PodTransferPacketSize int  `yaml:"podTransferPacketSize"`
	KeepPod               bool `yaml:"keepPod"`
	// PodOverride is merged into the generated pod as a JSON merge patch.
	PodOverride map[string]interface{} `yaml:"podOverride"`
}

type TagsConfig struct {
	Default string            `yaml:"default"`
	Static  string            `yaml:"static"`
	Prefix  string            `yaml:"prefix"`
	Regexes map[string]string `yaml:"regexes"`
}

// AuthType is the tag selecting an authorisation variant.
type AuthType string

const (
	PodOnly   AuthType = "pod-only"
	ACR       AuthType = "acr"
	GCR       AuthType = "gcr"
	DockerHub AuthType = "docker-hub"
)

// MountPolicy decides when an auth entry is applied.
type MountPolicy string

const (
	MountOnMatch MountPolicy = "onMatch"
	MountAlways  MountPolicy = "always"
)

// AuthConfig is one entry of the auth list. Exactly one of the variant
// pointers is set, matching Type.
type AuthConfig struct {
	Type      AuthType
	PodOnly   *PodOnlyAuth
	ACR       *ACRAuth
	GCR       *GCRAuth
	DockerHub *DockerHubAuth
}

// Common holds the fields shared by every auth variant.
type Common struct {
	URL   string      `yaml:"url"`
	Mount MountPolicy `yaml:"mount"`
}

type PodOnlyAuth struct {
	Common         `yaml:",inline"`
	ServiceAccount string        `yaml:"serviceAccount"`
	Env            []EnvEntry    `yaml:"env"`
	Volumes        []VolumeEntry `yaml:"volumes"`
}

// EnvEntry sets exactly one of FromSecret, FromConfigMap or Name and Value.
type EnvEntry struct {
	FromSecret    string `yaml:"fromSecret"`
	FromConfigMap string `yaml:"fromConfigMap"`
	Name          string `yaml:"name"`
	Value         string `yaml:"value"`
}

// VolumeEntry sets exactly one of FromSecret or FromConfigMap.
type VolumeEntry struct {
	FromSecret    string `yaml:"fromSecret"`
	FromConfigMap string `yaml:"fromConfigMap"`
	MountPath     string `yaml:"mountPath"`
}

type ACRAuth struct {
	PodOnlyAuth `yaml:",inline"`
	// Token is written straight into the docker config when set.
	Token string `yaml:"token"`
	// Registry overrides the hostname derived from the url.
	Registry string `yaml:"registry"`
}

type GCRAuth struct {
	PodOnlyAuth `yaml:",inline"`
	Registry    string `yaml:"registry"`
}

type DockerHubAuth struct {
	Common   `yaml:",inline"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// URL returns the prefix the entry matches on.
func (a AuthConfig) URL() string {
	return a.common().URL
}

// AlwaysMount reports whether the entry applies to every build.
func (a AuthConfig) AlwaysMount() bool {
	return a.common().Mount == MountAlways
}

func (a AuthConfig) common() Common {
	switch {
	case a.PodOnly != nil:
		return a.PodOnly.Common
	case a.ACR != nil:
		return a.ACR.Common
	case a.GCR != nil:
		return a.GCR.Common
	case a.DockerHub != nil:
		return a.DockerHub.Common
	}
	return Common{}
}
