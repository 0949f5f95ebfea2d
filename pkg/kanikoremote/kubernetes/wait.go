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
	"iter"
	"slices"
	"time"

	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/watch"

	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/output/log"
)

// waiting reasons that will not resolve by themselves.
var fatalWaitingReasons = []string{"ErrImagePull", "ImagePullBackOff", "InvalidImageName", "CreateContainerConfigError", "CreateContainerError"}

// WaitForContainerRunningState blocks until the container is running.
func (c *NamespacedClient) WaitForContainerRunningState(ctx context.Context, pod, container string, timeout time.Duration) (*v1.ContainerStateRunning, error) {
	state, err := c.waitForContainer(ctx, pod, container, timeout, "running", func(s v1.ContainerState) bool {
		return s.Running != nil
	})
	if err != nil {
		return nil, err
	}
	return state.Running, nil
}

// WaitForContainerTerminatedState blocks until the container has terminated.
func (c *NamespacedClient) WaitForContainerTerminatedState(ctx context.Context, pod, container string, timeout time.Duration) (*v1.ContainerStateTerminated, error) {
	state, err := c.waitForContainer(ctx, pod, container, timeout, "terminated", func(s v1.ContainerState) bool {
		return s.Terminated != nil
	})
	if err != nil {
		return nil, err
	}
	return state.Terminated, nil
}

// WaitForContainerStarted blocks until the container is either running or
// already terminated, whichever is observed first.
func (c *NamespacedClient) WaitForContainerStarted(ctx context.Context, pod, container string, timeout time.Duration) (v1.ContainerState, error) {
	return c.waitForContainer(ctx, pod, container, timeout, "started", func(s v1.ContainerState) bool {
		return s.Running != nil || s.Terminated != nil
	})
}

func (c *NamespacedClient) waitForContainer(ctx context.Context, pod, container string, timeout time.Duration, name string, reached func(v1.ContainerState) bool) (v1.ContainerState, error) {
	log.Entry(ctx).Debugf("Waiting for container %q in pod %q to be %s", container, pod, name)

	for state, err := range c.watchContainerStates(ctx, pod, container, timeout) {
		if err != nil {
			return v1.ContainerState{}, err
		}
		log.Entry(ctx).Tracef("Container %q in pod %q is %s", container, pod, describe(state))
		if reached(state) {
			return state, nil
		}
		if w := state.Waiting; w != nil && slices.Contains(fatalWaitingReasons, w.Reason) {
			return v1.ContainerState{}, kerrors.WithSuggestion(kerrors.NewClusterError(
				fmt.Sprintf("starting container %q in pod %q", container, pod),
				fmt.Errorf("%s: %s", w.Reason, w.Message)))
		}
	}

	if ctx.Err() != nil {
		return v1.ContainerState{}, ctx.Err()
	}
	return v1.ContainerState{}, &kerrors.TimeoutError{Pod: pod, Container: container, State: name}
}

// watchContainerStates yields the state of the named container every time the
// pod changes. The sequence ends when the watch times out.
func (c *NamespacedClient) watchContainerStates(ctx context.Context, pod, container string, timeout time.Duration) iter.Seq2[v1.ContainerState, error] {
	return func(yield func(v1.ContainerState, error) bool) {
		timeoutSeconds := int64(timeout.Seconds())
		watcher, err := c.pods().Watch(ctx, metav1.ListOptions{
			FieldSelector:  fields.OneTermEqualSelector("metadata.name", pod).String(),
			TimeoutSeconds: &timeoutSeconds,
		})
		if err != nil {
			yield(v1.ContainerState{}, kerrors.NewClusterError(fmt.Sprintf("watching pod %q", pod), err))
			return
		}
		defer watcher.Stop()

		deadline := time.NewTimer(timeout)
		defer deadline.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-deadline.C:
				return
			case event, ok := <-watcher.ResultChan():
				if !ok {
					return
				}
				switch event.Type {
				case watch.Error:
					yield(v1.ContainerState{}, kerrors.NewClusterError(fmt.Sprintf("watching pod %q", pod), apierrors.FromObject(event.Object)))
					return
				case watch.Deleted:
					yield(v1.ContainerState{}, kerrors.NewClusterError(fmt.Sprintf("watching pod %q", pod), fmt.Errorf("pod was deleted")))
					return
				}

				p, ok := event.Object.(*v1.Pod)
				if !ok {
					continue
				}
				states := containerStates(p, container)
				switch {
				case len(states) > 1:
					yield(v1.ContainerState{}, kerrors.NewConfigurationError("pod '%s' has more than one container '%s'", pod, container))
					return
				case len(states) == 1:
					if !yield(states[0], nil) {
						return
					}
				}
			}
		}
	}
}

func containerStates(pod *v1.Pod, container string) []v1.ContainerState {
	var states []v1.ContainerState
	for _, statuses := range [][]v1.ContainerStatus{pod.Status.InitContainerStatuses, pod.Status.ContainerStatuses, pod.Status.EphemeralContainerStatuses} {
		for _, s := range statuses {
			if s.Name == container {
				states = append(states, s.State)
			}
		}
	}
	return states
}

func describe(s v1.ContainerState) string {
	switch {
	case s.Running != nil:
		return "running"
	case s.Terminated != nil:
		return fmt.Sprintf("terminated with exit code %d", s.Terminated.ExitCode)
	case s.Waiting != nil && s.Waiting.Reason != "":
		return "waiting (" + s.Waiting.Reason + ")"
	}
	return "waiting"
}
