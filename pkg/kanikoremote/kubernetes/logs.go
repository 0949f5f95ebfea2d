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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	v1 "k8s.io/api/core/v1"

	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/output/log"
)

// for tests
var logRetryBackoff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second
	return b
}

// LogOptions selects which part of the log is tailed.
type LogOptions struct {
	// Follow keeps the stream open until the container terminates.
	Follow    bool
	TailLines *int64
}

// TailContainerLogs returns the container log as a lazy sequence of lines.
// Each call opens a new stream. Consumption stops as soon as ctx is done.
func (c *NamespacedClient) TailContainerLogs(ctx context.Context, pod, container string, opts LogOptions) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream, err := c.openLogStream(ctx, pod, container, opts)
		if err != nil {
			yield("", err)
			return
		}
		defer stream.Close()

		reader := bufio.NewReader(stream)
		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			line, err := reader.ReadString('\n')
			if line != "" {
				if !yield(strings.TrimRight(line, "\r\n"), nil) {
					return
				}
			}
			switch {
			case errors.Is(err, io.EOF):
				return
			case err != nil && ctx.Err() != nil:
				yield("", ctx.Err())
				return
			case err != nil:
				yield("", kerrors.NewClusterError(fmt.Sprintf("reading logs of %s/%s", pod, container), err))
				return
			}
		}
	}
}

// openLogStream retries while the container is not ready to serve logs yet.
func (c *NamespacedClient) openLogStream(ctx context.Context, pod, container string, opts LogOptions) (io.ReadCloser, error) {
	var stream io.ReadCloser
	open := func() error {
		var err error
		stream, err = c.pods().GetLogs(pod, &v1.PodLogOptions{
			Container: container,
			Follow:    opts.Follow,
			TailLines: opts.TailLines,
		}).Stream(ctx)
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Entry(ctx).Debugf("Unable to get logs of %s/%s, retrying in %s: %v", pod, container, next, err)
	}

	if err := backoff.RetryNotify(open, backoff.WithContext(logRetryBackoff(), ctx), notify); err != nil {
		return nil, kerrors.NewClusterError(fmt.Sprintf("streaming logs of %s/%s", pod, container), err)
	}
	return stream, nil
}
