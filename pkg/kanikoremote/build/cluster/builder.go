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
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docker/cli/cli/config/configfile"
	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
	v1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/auth"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/constants"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/docker"
	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/kubernetes"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/output/log"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/specs"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/tag"
)

// ErrBuildStopped is returned by Build when Close interrupted it.
var ErrBuildStopped = errors.New("build stopped before completion")

// recentLogLines are shown when the builder terminated before it could be followed.
const recentLogLines = 50

// cleanupTimeout bounds pod deletion once the build context is gone.
const cleanupTimeout = 30 * time.Second

// Builder runs a single kaniko build in an ephemeral pod.
type Builder struct {
	gateway  Gateway
	uploader Transfer

	pod          *v1.Pod
	podName      string
	dockerConfig *configfile.ConfigFile
	destinations []string

	// localContext is empty for contexts kaniko fetches by itself.
	localContext    string
	localDockerfile string
	remoteContext   string
	contextMounted  bool

	keepPod         bool
	podStartTimeout time.Duration

	mu      sync.Mutex
	state   State
	stopped atomic.Bool
}

// NewBuilder resolves tags, authorisation and kaniko arguments into a pod
// spec. Nothing is sent to the cluster yet.
func NewBuilder(gateway Gateway, uploader Transfer, cfg Config, req Request) (*Builder, error) {
	opts := cfg.BuilderOptions()
	b := &Builder{
		gateway:         gateway,
		uploader:        uploader,
		keepPod:         opts.KeepPod,
		podStartTimeout: cfg.PodStartTimeout(),
		state:           Created,
	}
	if b.podStartTimeout <= 0 {
		b.podStartTimeout = constants.DefaultPodStartTimeout
	}

	tagger, err := tag.NewTagger(cfg.TagOptions())
	if err != nil {
		return nil, err
	}
	if b.destinations, err = tagger.Transform(req.Tags); err != nil {
		return nil, err
	}

	kanikoContext, dockerfile, err := b.resolveContext(req)
	if err != nil {
		return nil, err
	}

	pod, err := specs.GeneratePodSpec(specs.PodOptions{
		Name:        opts.Name,
		CPU:         opts.CPU,
		Memory:      opts.Memory,
		KanikoImage: opts.KanikoImage,
		SetupImage:  opts.SetupImage,
		Labels:      opts.AdditionalLabels,
		Annotations: opts.AdditionalAnnotations,
	})
	if err != nil {
		return nil, err
	}
	if b.localContext != "" && !b.contextMounted {
		pod = specs.MountContextForExecTransfer(pod)
		b.contextMounted = true
	}

	urls := append([]string{}, b.destinations...)
	if b.remoteContext != "" {
		urls = append(urls, b.remoteContext)
	}
	authorisers, err := auth.GetMatchingAuthorisers(urls, cfg)
	if err != nil {
		return nil, err
	}
	pod, b.dockerConfig = auth.Apply(pod, authorisers)

	pod, err = specs.SetKanikoArgs(pod, specs.KanikoArgs{
		Context:      kanikoContext,
		Destinations: b.destinations,
		Dockerfile:   dockerfile,
		Target:       req.Target,
		Platform:     req.Platform,
		Verbosity:    logLevel().String(),
		BuildArgs:    req.BuildArgs,
		Labels:       req.Labels,
		Additional:   opts.AdditionalKanikoArgs,
	})
	if err != nil {
		return nil, err
	}

	if len(opts.PodOverride) > 0 {
		if pod, err = specs.ApplyPodOverride(pod, opts.PodOverride); err != nil {
			return nil, err
		}
	}
	if err := specs.Validate(pod); err != nil {
		return nil, err
	}

	b.pod = pod
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		if out, err := yaml.Marshal(pod); err == nil {
			logrus.Debugf("Builder pod spec:\n%s", out)
		}
	}
	return b, nil
}

// resolveContext returns the kaniko context and dockerfile arguments.
func (b *Builder) resolveContext(req Request) (string, string, error) {
	if req.Context == "" {
		req.Context = "."
	}
	if !docker.IsLocalContext(req.Context) {
		b.remoteContext = req.Context
		return req.Context, req.Dockerfile, nil
	}

	dir, err := filepath.Abs(req.Context)
	if err != nil {
		return "", "", &kerrors.ContextError{Path: req.Context, Msg: err.Error()}
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", "", &kerrors.ContextError{Path: req.Context, Msg: "not a directory"}
	}
	rel, err := docker.ValidateDockerfile(dir, req.Dockerfile)
	if err != nil {
		return "", "", err
	}

	b.localContext = dir
	b.localDockerfile = rel
	return "dir://" + constants.ContextMountPath, path.Join(constants.ContextMountPath, rel), nil
}

// Pod returns the generated pod, or the submitted one after Initialise.
func (b *Builder) Pod() *v1.Pod {
	return b.pod
}

func (b *Builder) Destinations() []string {
	return b.destinations
}

func (b *Builder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Builder) setState(ctx context.Context, s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	log.Entry(ctx).Tracef("Builder %s -> %s", b.state, s)
	b.state = s
}

func (b *Builder) expect(allowed ...State) error {
	current := b.State()
	for _, s := range allowed {
		if current == s {
			return nil
		}
	}
	return fmt.Errorf("builder is %s, expected %s", current, allowed[0])
}

// Initialise submits the pod.
func (b *Builder) Initialise(ctx context.Context) error {
	if err := b.expect(Created); err != nil {
		return err
	}
	ctx = log.WithPhase(ctx, log.Init)

	created, err := b.gateway.CreatePod(ctx, b.pod)
	if err != nil {
		return err
	}
	b.pod = created
	b.podName = created.Name
	b.setState(ctx, PodSubmitted)
	log.Entry(ctx).Infof("Created builder pod %s/%s", b.gateway.Namespace(), b.podName)
	return nil
}

// Setup waits for the setup container, then sends the build context and the
// docker config. The builder starts once the docker config is in place.
func (b *Builder) Setup(ctx context.Context) error {
	if err := b.expect(PodSubmitted); err != nil {
		return err
	}
	ctx = log.WithPhase(ctx, log.Setup)
	start := time.Now()

	if _, err := b.gateway.WaitForContainerRunningState(ctx, b.podName, constants.SetupContainerName, b.podStartTimeout); err != nil {
		return err
	}
	b.setState(ctx, SetupReady)

	if b.localContext != "" {
		files, err := docker.ContextFiles(b.localContext, b.localDockerfile)
		if err != nil {
			return err
		}
		tctx := log.WithPhase(ctx, log.Transfer)
		if _, err := b.uploader.UploadLocalFiles(tctx, b.podName, constants.SetupContainerName, files, constants.ContextMountPath, b.localContext, "Sending context"); err != nil {
			return err
		}
		b.setState(ctx, ContextTransferred)
	} else {
		log.Entry(ctx).Infof("Context %s is fetched by kaniko, skipping transfer", b.remoteContext)
	}

	if err := b.stageDockerConfig(ctx); err != nil {
		return err
	}
	b.setState(ctx, CredentialsStaged)

	log.Entry(ctx).Infof("Setup builder pod %s in %s", b.podName, time.Since(start).Round(time.Millisecond))
	return nil
}

func (b *Builder) stageDockerConfig(ctx context.Context) error {
	dir, err := os.MkdirTemp("", "kaniko-remote-config")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, constants.DockerConfigFileName)
	f, err := os.OpenFile(local, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := b.dockerConfig.SaveToWriter(f); err != nil {
		f.Close()
		return fmt.Errorf("writing docker config: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	return b.uploader.UploadFile(ctx, b.podName, constants.SetupContainerName, local, constants.DockerConfigMountPath)
}

// Build follows the builder logs until it terminates and returns the digest
// of the pushed image.
func (b *Builder) Build(ctx context.Context, onLog func(string)) (string, error) {
	if err := b.expect(CredentialsStaged); err != nil {
		return "", err
	}
	ctx = log.WithPhase(ctx, log.Build)
	start := time.Now()

	state, err := b.gateway.WaitForContainerStarted(ctx, b.podName, constants.BuilderContainerName, constants.DefaultBuilderTimeout)
	if err != nil {
		return "", err
	}

	if state.Running == nil && state.Terminated != nil {
		log.Entry(ctx).Warnf("Builder terminated before its logs could be followed, showing the last %d lines", recentLogLines)
		tail := int64(recentLogLines)
		for line, err := range b.gateway.TailContainerLogs(ctx, b.podName, constants.BuilderContainerName, kubernetes.LogOptions{TailLines: &tail}) {
			if err != nil {
				log.Entry(ctx).Debugf("Unable to read builder logs: %v", err)
				break
			}
			onLog(line)
		}
		return b.evaluate(ctx, state.Terminated, start)
	}

	b.setState(ctx, BuildRunning)
	for line, err := range b.gateway.TailContainerLogs(ctx, b.podName, constants.BuilderContainerName, kubernetes.LogOptions{Follow: true}) {
		if b.stopped.Load() {
			return "", ErrBuildStopped
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Entry(ctx).Warnf("Builder log stream interrupted: %v", err)
			break
		}
		onLog(line)
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if b.stopped.Load() {
		return "", ErrBuildStopped
	}

	terminated, err := b.gateway.WaitForContainerTerminatedState(ctx, b.podName, constants.BuilderContainerName, constants.DefaultBuilderTimeout)
	if err != nil {
		return "", err
	}
	return b.evaluate(ctx, terminated, start)
}

func (b *Builder) evaluate(ctx context.Context, terminated *v1.ContainerStateTerminated, start time.Time) (string, error) {
	b.setState(ctx, BuildTerminated)
	elapsed := time.Since(start).Round(time.Millisecond)

	if terminated.ExitCode != 0 {
		log.Entry(ctx).Debugf("Build failed after %s", elapsed)
		return "", &kerrors.BuildFailureError{Terminated: *terminated}
	}

	d := strings.TrimSpace(terminated.Message)
	if _, err := digest.Parse(d); err != nil {
		log.Entry(ctx).Warnf("Builder reported %q, which is not an image digest", d)
	}
	log.Entry(ctx).Infof("Built %s in %s", strings.Join(b.destinations, ", "), elapsed)
	return d, nil
}

// Close stops log streaming and deletes the pod unless it is kept. Deletion
// failures are logged and returned but never retried.
func (b *Builder) Close(ctx context.Context) error {
	b.stopped.Store(true)

	b.mu.Lock()
	if b.state == Destroyed {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	ctx = log.WithPhase(ctx, log.Cleanup)
	defer b.setState(ctx, Destroyed)

	if b.podName == "" {
		return nil
	}
	if b.keepPod {
		log.Entry(ctx).Warnf("Keeping pod %s/%s, delete it when done", b.gateway.Namespace(), b.podName)
		return nil
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	log.Entry(ctx).Infof("Deleting pod %s", b.podName)
	if err := b.gateway.DeletePod(cleanupCtx, b.podName); err != nil {
		log.Entry(ctx).Errorf("Unable to delete pod %s/%s: %v", b.gateway.Namespace(), b.podName, err)
		return err
	}
	log.Entry(ctx).Debugf("Deleted pod %s", b.podName)
	return nil
}

// Run submits the pod, builds and always cleans up.
func (b *Builder) Run(ctx context.Context, onLog func(string)) (string, error) {
	defer b.Close(ctx)

	if err := b.Initialise(ctx); err != nil {
		return "", err
	}
	if err := b.Setup(ctx); err != nil {
		return "", err
	}
	return b.Build(ctx, onLog)
}
