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

package app

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/kaniko-remote/kaniko-remote/cmd/kaniko-remote/app/cmd"
	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
)

// Run executes the command line and logs the final error.
func Run(out, stderr io.Writer) error {
	c := cmd.NewKanikoRemoteCommand(out, stderr)
	err := c.Execute()
	if err != nil && !errors.Is(err, context.Canceled) {
		logrus.Error(err)
	}
	return err
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	return kerrors.ExitCode(err)
}
