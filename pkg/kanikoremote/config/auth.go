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

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
)

var (
	commonKeys  = []string{"url", "type", "mount"}
	podOnlyKeys = append(slices.Clone(commonKeys), "serviceAccount", "env", "volumes")
	allowedKeys = map[AuthType][]string{
		PodOnly:   podOnlyKeys,
		ACR:       append(slices.Clone(podOnlyKeys), "token", "registry"),
		GCR:       append(slices.Clone(podOnlyKeys), "registry"),
		DockerHub: append(slices.Clone(commonKeys), "username", "password"),
	}
)

// UnmarshalYAML decodes an auth entry into the variant named by its type,
// rejecting keys the variant does not know.
func (a *AuthConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &kerrors.ConfigurationError{Msg: "auth entries must be mappings", Raw: raw(node)}
	}

	var probe struct {
		Type AuthType `yaml:"type"`
		URL  string   `yaml:"url"`
	}
	if err := node.Decode(&probe); err != nil {
		return &kerrors.ConfigurationError{Msg: "invalid auth entry", Raw: raw(node), Err: err}
	}
	if probe.Type == "" {
		probe.Type = PodOnly
	}

	allowed, ok := allowedKeys[probe.Type]
	if !ok {
		return &kerrors.ConfigurationError{Msg: fmt.Sprintf("unknown auth type %q", probe.Type), Raw: raw(node)}
	}
	if unknown := unknownKeys(node, allowed); len(unknown) > 0 {
		return kerrors.UnknownFieldsError(fmt.Sprintf("auth entry for '%s'", probe.URL), unknown)
	}

	a.Type = probe.Type
	var err error
	switch probe.Type {
	case PodOnly:
		a.PodOnly = &PodOnlyAuth{}
		err = node.Decode(a.PodOnly)
	case ACR:
		a.ACR = &ACRAuth{}
		err = node.Decode(a.ACR)
	case GCR:
		a.GCR = &GCRAuth{}
		err = node.Decode(a.GCR)
	case DockerHub:
		a.DockerHub = &DockerHubAuth{}
		err = node.Decode(a.DockerHub)
	}
	if err != nil {
		return &kerrors.ConfigurationError{Msg: fmt.Sprintf("invalid auth config for '%s'", probe.URL), Raw: raw(node), Err: err}
	}
	return a.validate(node)
}

func (a *AuthConfig) validate(node *yaml.Node) error {
	c := a.common()
	switch c.Mount {
	case "", MountOnMatch, "on-match":
		c.Mount = MountOnMatch
	case MountAlways:
	default:
		return &kerrors.ConfigurationError{Msg: "auth 'mount' must be one of 'onMatch' or 'always'", Raw: raw(node)}
	}
	if c.URL == "" && a.DockerHub != nil {
		c.URL = "docker.io"
	}
	if c.URL == "" {
		return &kerrors.ConfigurationError{Msg: "auth entries require a 'url'", Raw: raw(node)}
	}
	a.setCommon(c)

	switch {
	case a.PodOnly != nil:
		return a.PodOnly.validate(envAndVolumeNodes(node))
	case a.ACR != nil:
		return a.ACR.PodOnlyAuth.validate(envAndVolumeNodes(node))
	case a.GCR != nil:
		return a.GCR.PodOnlyAuth.validate(envAndVolumeNodes(node))
	case a.DockerHub != nil:
		if a.DockerHub.Username == "" || a.DockerHub.Password == "" {
			return &kerrors.ConfigurationError{Msg: "docker-hub auth must have 'username' and 'password' specified", Raw: raw(node)}
		}
	}
	return nil
}

func (a *AuthConfig) setCommon(c Common) {
	switch {
	case a.PodOnly != nil:
		a.PodOnly.Common = c
	case a.ACR != nil:
		a.ACR.Common = c
	case a.GCR != nil:
		a.GCR.Common = c
	case a.DockerHub != nil:
		a.DockerHub.Common = c
	}
}

// validate checks every env and volume entry, given their raw nodes for error reporting.
func (p *PodOnlyAuth) validate(envNodes, volumeNodes []*yaml.Node) error {
	for i, env := range p.Env {
		if unknown := unknownKeys(nodeAt(envNodes, i), []string{"fromSecret", "fromConfigMap", "name", "value"}); len(unknown) > 0 {
			return kerrors.UnknownFieldsError(fmt.Sprintf("env of auth entry for '%s'", p.URL), unknown)
		}

		n := 0
		for _, set := range []bool{env.FromSecret != "", env.FromConfigMap != "", env.Name != "" || env.Value != ""} {
			if set {
				n++
			}
		}
		if n != 1 || (env.FromSecret == "" && env.FromConfigMap == "" && (env.Name == "" || env.Value == "")) {
			return &kerrors.ConfigurationError{
				Msg: fmt.Sprintf("invalid auth config for '%s'. Env must specify one of 'fromSecret', 'fromConfigMap', or both 'name' and 'value'", p.URL),
				Raw: rawAt(envNodes, i),
			}
		}
	}

	for i, vol := range p.Volumes {
		if unknown := unknownKeys(nodeAt(volumeNodes, i), []string{"fromSecret", "fromConfigMap", "mountPath"}); len(unknown) > 0 {
			return kerrors.UnknownFieldsError(fmt.Sprintf("volume of auth entry for '%s'", p.URL), unknown)
		}

		if vol.MountPath == "" {
			return &kerrors.ConfigurationError{
				Msg: fmt.Sprintf("invalid auth config for '%s'. Volume with missing 'mountPath'", p.URL),
				Raw: rawAt(volumeNodes, i),
			}
		}
		if (vol.FromSecret == "") == (vol.FromConfigMap == "") {
			return &kerrors.ConfigurationError{
				Msg: fmt.Sprintf("invalid auth config for '%s'. Volume must specify either 'fromSecret' or 'fromConfigMap'", p.URL),
				Raw: rawAt(volumeNodes, i),
			}
		}
	}
	return nil
}

func envAndVolumeNodes(node *yaml.Node) (env, volumes []*yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		switch node.Content[i].Value {
		case "env":
			env = node.Content[i+1].Content
		case "volumes":
			volumes = node.Content[i+1].Content
		}
	}
	return env, volumes
}

// unknownKeys lists the keys of a mapping node that are not allowed.
func unknownKeys(node *yaml.Node, allowed []string) []string {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	var unknown []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		if key := node.Content[i].Value; !slices.Contains(allowed, key) {
			unknown = append(unknown, key)
		}
	}
	return unknown
}

func nodeAt(nodes []*yaml.Node, i int) *yaml.Node {
	if i < len(nodes) {
		return nodes[i]
	}
	return nil
}

func rawAt(nodes []*yaml.Node, i int) string {
	return raw(nodeAt(nodes, i))
}

// raw renders a node on a single line.
func raw(node *yaml.Node) string {
	if node == nil {
		return ""
	}
	flow := *node
	flow.Style = yaml.FlowStyle
	out, err := yaml.Marshal(&flow)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
