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
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewCmdPush accepts `docker push` style invocations. Images are pushed by
// kaniko during the build.
func NewCmdPush(out io.Writer) *cobra.Command {
	return NewCmd(out, "push").
		WithDescription("No-op, images are pushed during build").
		ArbitraryArgs(noop("push"))
}

// NewCmdTag accepts `docker tag` style invocations. Tags are given to build.
func NewCmdTag(out io.Writer) *cobra.Command {
	return NewCmd(out, "tag").
		WithDescription("No-op, tags are given to build with --tag").
		ArbitraryArgs(noop("tag"))
}

func noop(name string) func(context.Context, io.Writer, []string) error {
	return func(context.Context, io.Writer, []string) error {
		logrus.Infof("kaniko-remote %s does nothing, images are tagged and pushed by kaniko during build", name)
		return nil
	}
}
