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
	"github.com/docker/cli/cli/config/types"
	"github.com/sirupsen/logrus"
	v1 "k8s.io/api/core/v1"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/config"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/constants"
	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
)

// acr is pod-only auth plus an Azure Container Registry entry in the docker config.
type acr struct {
	*podOnly
	host  string
	token string
}

func newACR(opts config.ACRAuth) (*acr, error) {
	host, err := registryHost(opts.URL, opts.Registry)
	if err != nil {
		return nil, err
	}
	return &acr{podOnly: newPodOnly(opts.PodOnlyAuth), host: host, token: opts.Token}, nil
}

func (a *acr) AppendAuthToDockerConfig(dockerConfig *configfile.ConfigFile) *configfile.ConfigFile {
	if a.token != "" {
		logrus.Warn("Writing ACR auth token directly into docker config.")
		setAuth(dockerConfig, a.host, constants.ACRServicePrincipal, a.token)
	}
	setCredHelper(dockerConfig, a.host, constants.ACRCredHelper)
	return dockerConfig
}

// gcr is pod-only auth plus the gcr credential helper.
type gcr struct {
	*podOnly
	host string
}

func newGCR(opts config.GCRAuth) (*gcr, error) {
	host, err := registryHost(opts.URL, opts.Registry)
	if err != nil {
		return nil, err
	}
	return &gcr{podOnly: newPodOnly(opts.PodOnlyAuth), host: host}, nil
}

func (g *gcr) AppendAuthToDockerConfig(dockerConfig *configfile.ConfigFile) *configfile.ConfigFile {
	setCredHelper(dockerConfig, g.host, constants.GCRCredHelper)
	return dockerConfig
}

// dockerHub writes inline credentials for Docker Hub.
type dockerHub struct {
	url      string
	username string
	password string
}

func (d *dockerHub) URL() string                         { return d.url }
func (d *dockerHub) ServiceAccount() string              { return "" }
func (d *dockerHub) AppendAuthToPod(pod *v1.Pod) *v1.Pod { return pod }

func (d *dockerHub) AppendAuthToDockerConfig(dockerConfig *configfile.ConfigFile) *configfile.ConfigFile {
	setAuth(dockerConfig, constants.DockerHubAuthURL, d.username, d.password)
	return dockerConfig
}

func registryHost(authURL, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	host, err := hostname(authURL)
	if err != nil {
		return "", &kerrors.ConfigurationError{Msg: "cannot derive a registry hostname from '" + authURL + "'", Err: err}
	}
	return host, nil
}

func setAuth(dockerConfig *configfile.ConfigFile, host, username, password string) {
	if _, found := dockerConfig.AuthConfigs[host]; found {
		logrus.Warnf("Overwriting docker config auth for %s", host)
	}
	dockerConfig.AuthConfigs[host] = types.AuthConfig{
		Username: username,
		Password: password,
	}
}

func setCredHelper(dockerConfig *configfile.ConfigFile, host, helper string) {
	if dockerConfig.CredentialHelpers == nil {
		dockerConfig.CredentialHelpers = map[string]string{}
	}
	if existing, found := dockerConfig.CredentialHelpers[host]; found && existing != helper {
		logrus.Warnf("Overwriting docker config credential helper for %s", host)
	}
	dockerConfig.CredentialHelpers[host] = helper
}
