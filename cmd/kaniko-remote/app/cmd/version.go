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
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/version"
)

var versionJSON bool

func NewCmdVersion(out io.Writer) *cobra.Command {
	return NewCmd(out, "version").
		WithDescription("Print the version information").
		WithFlags(func(f *pflag.FlagSet) {
			f.BoolVar(&versionJSON, "json", false, "Print all version information as json")
		}).
		NoArgs(doVersion)
}

func doVersion(_ context.Context, out io.Writer) error {
	info := version.Get()
	if !versionJSON {
		_, err := fmt.Fprintln(out, info.Version)
		return err
	}
	return json.NewEncoder(out).Encode(info)
}
