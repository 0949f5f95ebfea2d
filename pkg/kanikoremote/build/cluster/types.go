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

package cluster

import (
	"context"
	"iter"
	"time"

	v1 "k8s.io/api/core/v1"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/config"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/kubernetes"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/transfer"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/walk"
)

// State is the lifecycle stage of a Builder.
type State int

const (
	Created State = iota
	PodSubmitted
	SetupReady
	ContextTransferred
	CredentialsStaged
	BuildRunning
	BuildTerminated
	Destroyed
)

var stateNames = map[State]string{
	Created:            "created",
	PodSubmitted:       "pod submitted",
	SetupReady:         "setup ready",
	ContextTransferred: "context transferred",
	CredentialsStaged:  "credentials staged",
	BuildRunning:       "build running",
	BuildTerminated:    "build terminated",
	Destroyed:          "destroyed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Gateway is the subset of the cluster API a Builder drives.
type Gateway interface {
	Namespace() string
	CreatePod(ctx context.Context, pod *v1.Pod) (*v1.Pod, error)
	DeletePod(ctx context.Context, name string) error
	WaitForContainerRunningState(ctx context.Context, pod, container string, timeout time.Duration) (*v1.ContainerStateRunning, error)
	WaitForContainerTerminatedState(ctx context.Context, pod, container string, timeout time.Duration) (*v1.ContainerStateTerminated, error)
	WaitForContainerStarted(ctx context.Context, pod, container string, timeout time.Duration) (v1.ContainerState, error)
	TailContainerLogs(ctx context.Context, pod, container string, opts kubernetes.LogOptions) iter.Seq2[string, error]
}

// Transfer copies local files into the setup container.
type Transfer interface {
	UploadLocalFiles(ctx context.Context, pod, container string, files walk.Walker, remotePath, relativeRoot, progressLabel string) (transfer.Result, error)
	UploadFile(ctx context.Context, pod, container, localPath, remotePath string) error
}

// Config is the configuration a Builder reads.
type Config interface {
	config.Provider
	TagOptions() config.TagsConfig
	PodStartTimeout() time.Duration
}

// Request describes a single image build, as given on the command line.
type Request struct {
	// Context is a local directory or a url kaniko can fetch.
	Context    string
	Dockerfile string
	Tags       []string
	BuildArgs  []string
	Labels     []string
	Target     string
	Platform   string
}
