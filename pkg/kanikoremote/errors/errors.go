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

package errors

import (
	"errors"
	"fmt"
	"strings"

	v1 "k8s.io/api/core/v1"
)

// Exit codes returned by the CLI for each error category.
const (
	ExitCodeUnknown       = 1
	ExitCodeConfiguration = 2
	ExitCodeContext       = 3
	ExitCodeCluster       = 4
	ExitCodeTimeout       = 5
	ExitCodeBuildFailure  = 6
)

// ConfigurationError reports malformed or contradictory user configuration.
type ConfigurationError struct {
	Msg string
	// Raw holds the offending configuration entry, if any.
	Raw string
	Err error
}

func (e *ConfigurationError) Error() string {
	msg := "invalid configuration: " + e.Msg
	if e.Raw != "" {
		msg += ", got: " + e.Raw
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, a ...interface{}) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, a...)}
}

// UnknownFieldsError reports leftover configuration keys.
func UnknownFieldsError(section string, keys []string) error {
	return &ConfigurationError{Msg: fmt.Sprintf("unknown keys in %s: %s", section, strings.Join(keys, ", "))}
}

// ContextError reports a local build context that cannot be used.
type ContextError struct {
	Path string
	Msg  string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("build context %q: %s", e.Path, e.Msg)
}

// ClusterError wraps a failing cluster API call.
type ClusterError struct {
	Op  string
	Err error
}

func (e *ClusterError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ClusterError) Unwrap() error { return e.Err }

// NewClusterError wraps err, returning nil if err is nil.
func NewClusterError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ClusterError{Op: op, Err: err}
}

// TimeoutError reports a wait that reached its deadline.
type TimeoutError struct {
	Pod       string
	Container string
	State     string
	Err       error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out waiting for container %q in pod %q to be %s", e.Container, e.Pod, e.State)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// BuildFailureError reports a builder container that exited with a nonzero code.
type BuildFailureError struct {
	Terminated v1.ContainerStateTerminated
}

func (e *BuildFailureError) ExitCode() int32 { return e.Terminated.ExitCode }

func (e *BuildFailureError) Error() string {
	msg := fmt.Sprintf("build failed with exit code %d", e.Terminated.ExitCode)
	if e.Terminated.Reason != "" {
		msg += " (" + e.Terminated.Reason + ")"
	}
	if m := strings.TrimSpace(e.Terminated.Message); m != "" {
		msg += ": " + m
	}
	return msg
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var (
		cfgErr     *ConfigurationError
		ctxErr     *ContextError
		clusterErr *ClusterError
		timeoutErr *TimeoutError
		buildErr   *BuildFailureError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return ExitCodeTimeout
	case errors.As(err, &buildErr):
		return ExitCodeBuildFailure
	case errors.As(err, &cfgErr):
		return ExitCodeConfiguration
	case errors.As(err, &ctxErr):
		return ExitCodeContext
	case errors.As(err, &clusterErr):
		return ExitCodeCluster
	}
	return ExitCodeUnknown
}
