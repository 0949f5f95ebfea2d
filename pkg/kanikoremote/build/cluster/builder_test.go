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
	"encoding/json"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/config"
	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/kubernetes"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/transfer"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/walk"
	"github.com/kaniko-remote/kaniko-remote/testutil"
)

const testDigest = "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

type fakeGateway struct {
	created    *v1.Pod
	deleted    []string
	deleteErr  error
	setupErr   error
	started    v1.ContainerState
	terminated *v1.ContainerStateTerminated
	logs       []string
	logOpts    []kubernetes.LogOptions
}

func (f *fakeGateway) Namespace() string { return "builds" }

func (f *fakeGateway) CreatePod(_ context.Context, pod *v1.Pod) (*v1.Pod, error) {
	created := pod.DeepCopy()
	created.Name = created.GenerateName + "xyz"
	f.created = created
	return created, nil
}

func (f *fakeGateway) DeletePod(ctx context.Context, name string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.deleted = append(f.deleted, name)
	return f.deleteErr
}

func (f *fakeGateway) WaitForContainerRunningState(context.Context, string, string, time.Duration) (*v1.ContainerStateRunning, error) {
	if f.setupErr != nil {
		return nil, f.setupErr
	}
	return &v1.ContainerStateRunning{}, nil
}

func (f *fakeGateway) WaitForContainerTerminatedState(context.Context, string, string, time.Duration) (*v1.ContainerStateTerminated, error) {
	return f.terminated, nil
}

func (f *fakeGateway) WaitForContainerStarted(context.Context, string, string, time.Duration) (v1.ContainerState, error) {
	return f.started, nil
}

func (f *fakeGateway) TailContainerLogs(_ context.Context, _, _ string, opts kubernetes.LogOptions) iter.Seq2[string, error] {
	f.logOpts = append(f.logOpts, opts)
	return func(yield func(string, error) bool) {
		for _, l := range f.logs {
			if !yield(l, nil) {
				return
			}
		}
	}
}

type fakeTransfer struct {
	contextFiles []string
	remotePaths  []string
	dockerConfig string
}

func (f *fakeTransfer) UploadLocalFiles(_ context.Context, _, _ string, files walk.Walker, remotePath, relativeRoot, _ string) (transfer.Result, error) {
	paths, err := files.CollectPaths()
	if err != nil {
		return transfer.Result{}, err
	}
	for _, p := range paths {
		rel, _ := filepath.Rel(relativeRoot, p)
		f.contextFiles = append(f.contextFiles, filepath.ToSlash(rel))
	}
	f.remotePaths = append(f.remotePaths, remotePath)
	return transfer.Result{Files: len(paths)}, nil
}

func (f *fakeTransfer) UploadFile(_ context.Context, _, _, localPath, remotePath string) error {
	b, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.dockerConfig = string(b)
	f.remotePaths = append(f.remotePaths, remotePath)
	return nil
}

func parseConfig(t *testutil.T, yaml string) *config.Config {
	cfg, err := config.Parse([]byte(yaml))
	t.CheckNoError(err)
	return cfg
}

const testConfig = `
builder:
  name: alice
tags:
  prefix: registry.example.com/team
auth:
  - url: registry.example.com
    type: docker-hub
    username: bob
    password: secret
`

func running() v1.ContainerState {
	return v1.ContainerState{Running: &v1.ContainerStateRunning{StartedAt: metav1.Now()}}
}

func newTestBuilder(t *testutil.T, gateway Gateway, uploader Transfer, yaml string) *Builder {
	tmpDir := t.NewTempDir().WriteFiles(map[string]string{
		"Dockerfile":    "FROM scratch",
		".dockerignore": "*.log",
		"main.go":       "package main",
		"debug.log":     "noise",
	})
	b, err := NewBuilder(gateway, uploader, parseConfig(t, yaml), Request{
		Context: tmpDir.Root(),
		Tags:    []string{"app:1.0"},
	})
	t.CheckNoError(err)
	return b
}

func TestNewBuilderLocalContext(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		b := newTestBuilder(t, &fakeGateway{}, &fakeTransfer{}, testConfig)

		t.CheckDeepEqual(Created, b.State())
		t.CheckDeepEqual([]string{"registry.example.com/team/app:1.0"}, b.Destinations())

		pod := b.Pod()
		builder := pod.Spec.Containers[0]
		t.CheckTrue(slices.Contains(builder.Args, "--context=dir:///workspace"))
		t.CheckTrue(slices.Contains(builder.Args, "--dockerfile=/workspace/Dockerfile"))
		t.CheckTrue(slices.Contains(builder.Args, "--destination=registry.example.com/team/app:1.0"))
		t.CheckTrue(slices.Contains(builder.Args, "--verbosity=info"))

		var volumes []string
		for _, v := range pod.Spec.Volumes {
			volumes = append(volumes, v.Name)
		}
		t.CheckDeepEqual([]string{"config", "context"}, volumes)
	})
}

func TestNewBuilderRemoteContext(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		b, err := NewBuilder(&fakeGateway{}, &fakeTransfer{}, parseConfig(t, testConfig), Request{
			Context:    "git://github.com/example/app.git",
			Dockerfile: "build/Dockerfile",
			Tags:       []string{"app"},
		})
		t.CheckNoError(err)

		args := b.Pod().Spec.Containers[0].Args
		t.CheckTrue(slices.Contains(args, "--context=git://github.com/example/app.git"))
		t.CheckTrue(slices.Contains(args, "--dockerfile=build/Dockerfile"))
		t.CheckDeepEqual(1, len(b.Pod().Spec.Volumes))
	})
}

func TestNewBuilderErrors(t *testing.T) {
	tests := []struct {
		description string
		files       map[string]string
		request     Request
		config      string
		errType     interface{}
	}{
		{
			description: "missing dockerfile",
			files:       map[string]string{"main.go": ""},
			request:     Request{Tags: []string{"app"}},
			config:      testConfig,
			errType:     new(*kerrors.ContextError),
		},
		{
			description: "no tag and no default",
			files:       map[string]string{"Dockerfile": ""},
			request:     Request{},
			config:      testConfig,
			errType:     new(*kerrors.ConfigurationError),
		},
		{
			description: "invalid pod override",
			files:       map[string]string{"Dockerfile": ""},
			request:     Request{Tags: []string{"app"}},
			config: `
builder:
  podOverride:
    spec:
      initContainers: []
`,
			errType: new(*kerrors.ConfigurationError),
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			tmpDir := t.NewTempDir().WriteFiles(test.files)
			test.request.Context = tmpDir.Root()
			gateway := &fakeGateway{}

			_, err := NewBuilder(gateway, &fakeTransfer{}, parseConfig(t, test.config), test.request)

			t.CheckErrorType(test.errType, err)
			t.CheckTrue(gateway.created == nil)
		})
	}
}

func TestRunSuccess(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		gateway := &fakeGateway{
			started:    running(),
			terminated: &v1.ContainerStateTerminated{ExitCode: 0, Message: testDigest + "\n"},
			logs:       []string{"INFO Retrieving image manifest", "INFO Pushed image"},
		}
		uploader := &fakeTransfer{}
		b := newTestBuilder(t, gateway, uploader, testConfig)

		var lines []string
		digest, err := b.Run(context.Background(), func(l string) { lines = append(lines, l) })

		t.CheckNoError(err)
		t.CheckDeepEqual(testDigest, digest)
		t.CheckDeepEqual(gateway.logs, lines)
		t.CheckDeepEqual([]string{"kaniko-remote-alice-xyz"}, gateway.deleted)
		t.CheckDeepEqual(Destroyed, b.State())

		// .dockerignore and the files it excludes are not sent
		t.CheckDeepEqual([]string{"Dockerfile", "main.go"}, uploader.contextFiles)
		t.CheckDeepEqual([]string{"/workspace", "/kaniko/.docker"}, uploader.remotePaths)

		var dockerConfig struct {
			Auths map[string]struct {
				Auth string `json:"auth"`
			} `json:"auths"`
		}
		t.CheckNoError(json.Unmarshal([]byte(uploader.dockerConfig), &dockerConfig))
		t.CheckDeepEqual("Ym9iOnNlY3JldA==", dockerConfig.Auths["https://index.docker.io/v1/"].Auth)
	})
}

func TestRunBuildFailure(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		gateway := &fakeGateway{
			started:    running(),
			terminated: &v1.ContainerStateTerminated{ExitCode: 1, Reason: "Error"},
			logs:       []string{"error building image"},
		}
		b := newTestBuilder(t, gateway, &fakeTransfer{}, testConfig)

		digest, err := b.Run(context.Background(), func(string) {})

		t.CheckEmpty(digest)
		t.CheckErrorType(new(*kerrors.BuildFailureError), err)
		t.CheckDeepEqual(kerrors.ExitCodeBuildFailure, kerrors.ExitCode(err))
		t.CheckDeepEqual([]string{"kaniko-remote-alice-xyz"}, gateway.deleted)
	})
}

func TestRunTerminatedBeforeFollowing(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		terminated := &v1.ContainerStateTerminated{ExitCode: 1, Message: "error resolving dockerfile"}
		gateway := &fakeGateway{
			started: v1.ContainerState{Terminated: terminated},
			logs:    []string{"error resolving dockerfile path"},
		}
		b := newTestBuilder(t, gateway, &fakeTransfer{}, testConfig)

		var lines []string
		_, err := b.Run(context.Background(), func(l string) { lines = append(lines, l) })

		t.CheckErrorType(new(*kerrors.BuildFailureError), err)
		t.CheckErrorContains("error resolving dockerfile", err)
		t.CheckDeepEqual(gateway.logs, lines)
		t.CheckFalse(gateway.logOpts[0].Follow)
		t.CheckDeepEqual(int64(recentLogLines), *gateway.logOpts[0].TailLines)
	})
}

func TestRunKeepPod(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		gateway := &fakeGateway{
			started:    running(),
			terminated: &v1.ContainerStateTerminated{ExitCode: 0, Message: testDigest},
		}
		b := newTestBuilder(t, gateway, &fakeTransfer{}, `
builder:
  name: alice
  keepPod: true
tags:
  default: registry.example.com/app:latest
`)

		_, err := b.Run(context.Background(), func(string) {})

		t.CheckNoError(err)
		t.CheckEmpty(gateway.deleted)
		t.CheckDeepEqual(Destroyed, b.State())
	})
}

func TestRunSetupTimeout(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		gateway := &fakeGateway{setupErr: &kerrors.TimeoutError{Pod: "p", Container: "setup", State: "running"}}
		uploader := &fakeTransfer{}
		b := newTestBuilder(t, gateway, uploader, testConfig)

		_, err := b.Run(context.Background(), func(string) {})

		t.CheckErrorType(new(*kerrors.TimeoutError), err)
		t.CheckEmpty(uploader.remotePaths)
		t.CheckDeepEqual([]string{"kaniko-remote-alice-xyz"}, gateway.deleted)
	})
}

func TestCloseStopsBuild(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		gateway := &fakeGateway{
			started: running(),
			logs:    []string{"first", "second", "third"},
		}
		b := newTestBuilder(t, gateway, &fakeTransfer{}, testConfig)

		var lines []string
		_, err := b.Run(context.Background(), func(l string) {
			lines = append(lines, l)
			b.Close(context.Background())
		})

		t.CheckTrue(err == ErrBuildStopped)
		t.CheckDeepEqual([]string{"first"}, lines)
		t.CheckDeepEqual([]string{"kaniko-remote-alice-xyz"}, gateway.deleted)
	})
}

func TestCleanupSurvivesCancellation(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		gateway := &fakeGateway{}
		b := newTestBuilder(t, gateway, &fakeTransfer{}, testConfig)
		ctx, cancel := context.WithCancel(context.Background())

		t.CheckNoError(b.Initialise(ctx))
		cancel()

		t.CheckNoError(b.Close(ctx))
		t.CheckDeepEqual([]string{"kaniko-remote-alice-xyz"}, gateway.deleted)
	})
}

func TestStateOrder(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		b := newTestBuilder(t, &fakeGateway{}, &fakeTransfer{}, testConfig)

		err := b.Setup(context.Background())
		t.CheckErrorContains("expected pod submitted", err)

		_, err = b.Build(context.Background(), func(string) {})
		t.CheckErrorContains("expected credentials staged", err)
	})
}
