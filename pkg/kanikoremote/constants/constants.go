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

package constants

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultLogLevel is the default global verbosity
	DefaultLogLevel = logrus.InfoLevel

	// DefaultDockerfilePath is the dockerfile path is given relative to the
	// context directory
	DefaultDockerfilePath = "Dockerfile"

	DefaultKanikoImage = "gcr.io/kaniko-project/executor:latest"
	DefaultSetupImage  = "busybox:stable"
	DefaultCPU         = "1"
	DefaultMemory      = "1G"
	DefaultNamespace   = "default"

	// DefaultDigestFile is where kaniko writes the digest. The termination
	// log ends up in the terminated state's message.
	DefaultDigestFile = "/dev/termination-log"

	DefaultPodStartTimeout    = 300 * time.Second
	DefaultBuilderTimeout     = 10 * time.Second
	DefaultTransferPacketSize = 14000

	SetupContainerName   = "setup"
	BuilderContainerName = "builder"

	DockerConfigVolumeName = "config"
	DockerConfigMountPath  = "/kaniko/.docker"
	DockerConfigFileName   = "config.json"

	ContextVolumeName = "context"
	ContextMountPath  = "/workspace"

	// ACRServicePrincipal is the placeholder user expected by the acr credential helper.
	ACRServicePrincipal = "00000000-0000-0000-0000-000000000000"
	ACRCredHelper       = "acr-env"
	GCRCredHelper       = "gcr-env"
	DockerHubAuthURL    = "https://index.docker.io/v1/"

	ConfigEnvironmentVariable = "KANIKO_REMOTE_CONFIG"
	ConfigFileName            = ".kaniko-remote.yaml"

	InClusterEnvironmentVariable = "KUBERNETES_SERVICE_HOST"
	InClusterNamespacePath       = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

	DefaultKanikoArg = "--use-new-run"
)

var DefaultKanikoArgs = []string{DefaultKanikoArg}

var Labels = struct {
	Name        string
	Component   string
	BuilderName string
	Version     string
}{
	Name:        "app.kubernetes.io/name",
	Component:   "app.kubernetes.io/component",
	BuilderName: "kaniko-remote/builder-name",
	Version:     "kaniko-remote/version",
}

const (
	AppName       = "kaniko-remote"
	ComponentName = "builder"
)

// SetupCommand blocks the init container until the docker config has been staged.
var SetupCommand = []string{"sh", "-c", "until [ -e " + DockerConfigMountPath + "/" + DockerConfigFileName + " ]; do sleep 1; done"}
