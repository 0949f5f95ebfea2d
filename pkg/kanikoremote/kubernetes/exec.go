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

package kubernetes

import (
	"context"
	"fmt"

	v1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	restclient "k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"

	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
)

// Executor runs a command inside a container without a TTY.
type Executor interface {
	Exec(ctx context.Context, namespace, pod, container string, command []string, streams remotecommand.StreamOptions) error
}

type spdyExecutor struct {
	client kubernetes.Interface
	config *restclient.Config
}

func (e *spdyExecutor) Exec(ctx context.Context, namespace, pod, container string, command []string, streams remotecommand.StreamOptions) error {
	req := e.client.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(pod).
		Namespace(namespace).
		SubResource("exec").
		VersionedParams(&v1.PodExecOptions{
			Container: container,
			Command:   command,
			Stdin:     streams.Stdin != nil,
			Stdout:    streams.Stdout != nil,
			Stderr:    streams.Stderr != nil,
			TTY:       false,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(e.config, "POST", req.URL())
	if err != nil {
		return fmt.Errorf("creating exec session: %w", err)
	}
	return executor.StreamWithContext(ctx, streams)
}

// Exec runs command in a container of a pod of this namespace.
func (c *NamespacedClient) Exec(ctx context.Context, pod, container string, command []string, streams remotecommand.StreamOptions) error {
	streams.Tty = false
	err := c.executor.Exec(ctx, c.namespace, pod, container, command, streams)
	return kerrors.WithSuggestion(kerrors.NewClusterError(fmt.Sprintf("exec in %s/%s", pod, container), err))
}
