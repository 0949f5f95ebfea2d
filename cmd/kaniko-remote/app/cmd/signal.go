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
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// for tests
var (
	notifyInterrupt = func(c chan<- os.Signal) { signal.Notify(c, os.Interrupt, syscall.SIGTERM) }
	stopInterrupt   = func(c chan<- os.Signal) { signal.Stop(c) }
	exit            = os.Exit
)

// withInterrupt cancels the returned context on the first interrupt so that
// the builder pod gets cleaned up. A second interrupt exits immediately.
func withInterrupt(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	sigs := make(chan os.Signal, 2)
	notifyInterrupt(sigs)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			logrus.Warn("Interrupted, cleaning up. Interrupt again to exit immediately.")
			cancel()
		case <-done:
			return
		}

		select {
		case <-sigs:
			logrus.Error("Exiting without cleanup, the builder pod may be left behind")
			exit(130)
		case <-done:
		}
	}()

	return ctx, func() {
		stopInterrupt(sigs)
		close(done)
		cancel()
	}
}
