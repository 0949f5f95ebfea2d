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
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/constants"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/version"
)

var (
	v          string
	configFile string
)

// NewKanikoRemoteCommand returns the root command.
func NewKanikoRemoteCommand(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kaniko-remote",
		Short: "Build container images with kaniko in an ephemeral Kubernetes pod",
		Long: `kaniko-remote builds container images with kaniko in a short lived pod.

A local build context is streamed into the pod, registry credentials are
resolved from the configuration file and the pod is deleted once the image
has been pushed.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := SetUpLogs(errOut, v); err != nil {
			return err
		}
		logrus.Debugf("kaniko-remote %+v", version.Get())
		return nil
	}

	rootCmd.AddCommand(NewCmdBuild(out, errOut))
	rootCmd.AddCommand(NewCmdPush(out))
	rootCmd.AddCommand(NewCmdTag(out))
	rootCmd.AddCommand(NewCmdVersion(out))

	rootCmd.PersistentFlags().StringVarP(&v, "verbosity", "v", constants.DefaultLogLevel.String(), "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file. Defaults to $"+constants.ConfigEnvironmentVariable+", then "+constants.ConfigFileName+" in the current or home directory")
	return rootCmd
}

// SetUpLogs sends logs to out at the given level.
func SetUpLogs(out io.Writer, level string) error {
	logrus.SetOutput(out)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "parsing log level")
	}
	logrus.SetLevel(lvl)
	return nil
}
