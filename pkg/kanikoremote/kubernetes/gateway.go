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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	corev1 "k8s.io/client-go/kubernetes/typed/core/v1"

	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/output/log"
)

// NamespacedClient wraps the pod operations needed to run a remote build in
// a single namespace.
type NamespacedClient struct {
	client    kubernetes.Interface
	namespace string
	executor  Executor
}

// NewNamespacedClient builds a client from the configured kube-context.
func NewNamespacedClient(namespace string) (*NamespacedClient, error) {
	client, err := Client()
	if err != nil {
		return nil, kerrors.NewClusterError("creating kubernetes client", err)
	}
	config, err := RestConfig()
	if err != nil {
		return nil, kerrors.NewClusterError("creating kubernetes client", err)
	}
	return NewNamespacedClientFor(client, namespace, &spdyExecutor{client: client, config: config}), nil
}

// NewNamespacedClientFor wraps an existing clientset and executor.
func NewNamespacedClientFor(client kubernetes.Interface, namespace string, executor Executor) *NamespacedClient {
	return &NamespacedClient{client: client, namespace: namespace, executor: executor}
}

func (c *NamespacedClient) Namespace() string {
	return c.namespace
}

func (c *NamespacedClient) pods() corev1.PodInterface {
	return c.client.CoreV1().Pods(c.namespace)
}

// CreatePod submits the pod and returns it with its cluster assigned name.
func (c *NamespacedClient) CreatePod(ctx context.Context, pod *v1.Pod) (*v1.Pod, error) {
	created, err := c.pods().Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return nil, kerrors.WithSuggestion(kerrors.NewClusterError(fmt.Sprintf("creating pod in namespace %q", c.namespace), err))
	}
	log.Entry(ctx).Debugf("Created pod %s/%s", c.namespace, created.Name)
	return created, nil
}

// DeletePod deletes the pod immediately.
func (c *NamespacedClient) DeletePod(ctx context.Context, name string) error {
	var zero int64
	err := c.pods().Delete(ctx, name, metav1.DeleteOptions{GracePeriodSeconds: &zero})
	return kerrors.NewClusterError(fmt.Sprintf("deleting pod %s/%s", c.namespace, name), err)
}
