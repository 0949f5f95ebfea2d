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

package log

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextKey struct{}

var ContextKey = contextKey{}

// Phase names the stage of a remote build a log line belongs to.
type Phase string

const (
	Init     Phase = "init"
	Setup    Phase = "setup"
	Transfer Phase = "transfer"
	Build    Phase = "build"
	Cleanup  Phase = "cleanup"
)

type EventContext struct {
	Builder string
	Phase   Phase
}

// WithBuilder returns a context whose log entries carry the builder name.
func WithBuilder(ctx context.Context, builder string) context.Context {
	ec, _ := ctx.Value(ContextKey).(EventContext)
	ec.Builder = builder
	return context.WithValue(ctx, ContextKey, ec)
}

// WithPhase returns a context whose log entries carry the given phase.
func WithPhase(ctx context.Context, phase Phase) context.Context {
	ec, _ := ctx.Value(ContextKey).(EventContext)
	ec.Phase = phase
	return context.WithValue(ctx, ContextKey, ec)
}

// Entry takes an context.Context and constructs a logrus.Entry from it, adding
// fields for builder and phase information
func Entry(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	eventContext, ok := ctx.Value(ContextKey).(EventContext)
	if !ok {
		return logrus.NewEntry(logrus.StandardLogger())
	}

	fields := logrus.Fields{}
	if eventContext.Builder != "" {
		fields["builder"] = eventContext.Builder
	}
	if eventContext.Phase != "" {
		fields["phase"] = eventContext.Phase
	}
	return logrus.WithFields(fields)
}
