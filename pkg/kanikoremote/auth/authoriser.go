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
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/docker/cli/cli/config/configfile"
	"github.com/sirupsen/logrus"
	v1 "k8s.io/api/core/v1"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/config"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/constants"
	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
)

// Authoriser contributes registry credentials to the builder pod and to the
// docker config staged inside it.
type Authoriser interface {
	URL() string
	ServiceAccount() string
	AppendAuthToPod(pod *v1.Pod) *v1.Pod
	AppendAuthToDockerConfig(dockerConfig *configfile.ConfigFile) *configfile.ConfigFile
}

// GetMatchingAuthorisers returns, in configuration order, every auth entry
// that is always mounted or whose url is a prefix of one of urls.
func GetMatchingAuthorisers(urls []string, cfg config.Provider) ([]Authoriser, error) {
	always := cfg.ListAlwaysMountAuthorisers()

	var selected []config.AuthConfig
	for _, authURL := range cfg.ListAllAuthorisers() {
		matches := slices.Contains(always, authURL) || slices.ContainsFunc(urls, func(u string) bool {
			return strings.HasPrefix(u, authURL)
		})
		if !matches {
			continue
		}
		opts, found := cfg.AuthoriserOptions(authURL)
		if !found {
			return nil, kerrors.NewConfigurationError("no auth options for '%s'", authURL)
		}
		selected = append(selected, opts)
	}

	var authorisers []Authoriser
	for _, opts := range selected {
		a, err := New(opts)
		if err != nil {
			return nil, err
		}
		logrus.Debugf("Using %s auth for '%s'", opts.Type, a.URL())
		authorisers = append(authorisers, a)
	}

	checkServiceAccounts(authorisers)
	return authorisers, nil
}

// checkServiceAccounts warns when more than one service account is requested.
// The last one is applied.
func checkServiceAccounts(authorisers []Authoriser) {
	var accounts []string
	for _, a := range authorisers {
		if sa := a.ServiceAccount(); sa != "" && !slices.Contains(accounts, sa) {
			accounts = append(accounts, sa)
		}
	}
	if len(accounts) > 1 {
		logrus.Warnf("Found multiple matching authorisers with service accounts specified. Using '%s'.", accounts[len(accounts)-1])
	}
}

// New instantiates the authoriser for an auth entry.
func New(opts config.AuthConfig) (Authoriser, error) {
	switch {
	case opts.Type == config.PodOnly && opts.PodOnly != nil:
		return newPodOnly(*opts.PodOnly), nil
	case opts.Type == config.ACR && opts.ACR != nil:
		return newACR(*opts.ACR)
	case opts.Type == config.GCR && opts.GCR != nil:
		return newGCR(*opts.GCR)
	case opts.Type == config.DockerHub && opts.DockerHub != nil:
		return &dockerHub{
			url:      opts.DockerHub.URL,
			username: opts.DockerHub.Username,
			password: opts.DockerHub.Password,
		}, nil
	}
	return nil, kerrors.NewConfigurationError("unknown auth type %q", opts.Type)
}

// Apply folds every authoriser into the pod and a fresh docker config.
func Apply(pod *v1.Pod, authorisers []Authoriser) (*v1.Pod, *configfile.ConfigFile) {
	dockerConfig := NewDockerConfig()
	for _, a := range authorisers {
		pod = a.AppendAuthToPod(pod)
		dockerConfig = a.AppendAuthToDockerConfig(dockerConfig)
	}
	return pod, dockerConfig
}

// NewDockerConfig returns an empty docker config bound to the in-pod location.
func NewDockerConfig() *configfile.ConfigFile {
	return configfile.New(constants.DockerConfigMountPath + "/" + constants.DockerConfigFileName)
}

// hostname extracts the registry host from an auth url such as "r.io/team".
func hostname(authURL string) (string, error) {
	if !strings.Contains(authURL, "://") {
		authURL = "https://" + authURL
	}
	u, err := url.Parse(authURL)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("no hostname in %q", authURL)
	}
	return u.Host, nil
}
