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

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/build/cluster"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/config"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/kubernetes"
	kubectx "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/kubernetes/context"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/output/log"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/transfer"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/util"
)

type buildOptions struct {
	tags      []string
	file      string
	buildArgs []string
	labels    []string
	target    string
	platform  string
	quiet     bool
	iidFile   string
}

var buildOpts buildOptions

type imageBuilder interface {
	Run(ctx context.Context, onLog func(string)) (string, error)
}

// for tests
var (
	loadConfig = config.Load
	newBuilder = createBuilder
)

// NewCmdBuild describes the CLI command to build an image remotely.
func NewCmdBuild(out, errOut io.Writer) *cobra.Command {
	return NewCmd(out, "build [OPTIONS] PATH").
		WithDescription("Build an image from a Dockerfile in a Kubernetes pod").
		WithLongDescription("Build an image with kaniko in an ephemeral pod. PATH is a local directory, streamed into the pod, or a remote context kaniko can fetch (git://, gs://, s3://, https://...).").
		WithExample("Build the current directory", "build -t registry.example.com/app:1.0 .").
		WithExample("Build from a git repository, printing only the digest", "build -q -t registry.example.com/app git://github.com/example/app.git").
		WithFlags(func(f *pflag.FlagSet) {
			f.StringArrayVarP(&buildOpts.tags, "tag", "t", nil, "Name and optionally a tag in the 'name:tag' format")
			f.StringVarP(&buildOpts.file, "file", "f", "", "Name of the Dockerfile, relative to PATH (default \"PATH/Dockerfile\")")
			f.StringArrayVar(&buildOpts.buildArgs, "build-arg", nil, "Set build-time variables")
			f.StringArrayVar(&buildOpts.labels, "label", nil, "Set metadata for an image")
			f.StringVar(&buildOpts.target, "target", "", "Set the target build stage to build")
			f.StringVar(&buildOpts.platform, "platform", "", "Set platform if server is multi-platform capable")
			f.BoolVarP(&buildOpts.quiet, "quiet", "q", false, "Suppress the build output and print image digest on success")
			f.StringVar(&buildOpts.iidFile, "iidfile", "", "Write the image digest to the file")
		}).
		MaximumArgs(1, func(ctx context.Context, out io.Writer, args []string) error {
			return doBuild(ctx, out, errOut, args)
		})
}

func doBuild(ctx context.Context, out, errOut io.Writer, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := withInterrupt(ctx)
	defer stop()

	buildContext := "."
	if len(args) == 1 {
		buildContext = args[0]
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	ctx = log.WithBuilder(ctx, cfg.BuilderOptions().Name)

	req := cluster.Request{
		Context:    buildContext,
		Dockerfile: buildOpts.file,
		Tags:       buildOpts.tags,
		BuildArgs:  expandBuildArgs(buildOpts.buildArgs),
		Labels:     buildOpts.labels,
		Target:     buildOpts.target,
		Platform:   buildOpts.platform,
	}

	_, errIsTerm := util.IsTerminal(errOut)
	b, err := newBuilder(ctx, cfg, req, !buildOpts.quiet && errIsTerm)
	if err != nil {
		return err
	}

	logOut := out
	if buildOpts.quiet {
		logOut = io.Discard
	}
	printer := newLogPrinter(logOut)
	digest, err := b.Run(ctx, printer.Print)
	if flushErr := printer.Flush(); err == nil {
		err = flushErr
	}
	if err != nil {
		return err
	}

	if buildOpts.iidFile != "" {
		if err := os.WriteFile(buildOpts.iidFile, []byte(digest), 0644); err != nil {
			return fmt.Errorf("writing image id file: %w", err)
		}
	}
	_, err = fmt.Fprintln(out, digest)
	return err
}

func createBuilder(ctx context.Context, cfg *config.Config, req cluster.Request, progress bool) (imageBuilder, error) {
	k := cfg.KubernetesOptions()
	kubectx.ConfigureKubeConfig(k.Kubeconfig, k.Context)

	client, err := kubernetes.NewNamespacedClient(cfg.Namespace())
	if err != nil {
		return nil, err
	}
	uploader := &transfer.Uploader{
		Exec:       client,
		PacketSize: cfg.BuilderOptions().PodTransferPacketSize,
		Progress:   progress,
	}
	log.Entry(ctx).Debugf("Building in namespace %s", client.Namespace())
	return cluster.NewBuilder(client, uploader, cfg, req)
}

// expandBuildArgs takes values for bare `--build-arg NAME` from the environment,
// the way docker does. Names missing from the environment are dropped.
func expandBuildArgs(args []string) []string {
	var expanded []string
	for _, arg := range args {
		if strings.Contains(arg, "=") {
			expanded = append(expanded, arg)
			continue
		}
		if value, ok := os.LookupEnv(arg); ok {
			expanded = append(expanded, arg+"="+value)
			continue
		}
		logrus.Debugf("Build arg %s is not set in the environment, ignoring it", arg)
	}
	return expanded
}
