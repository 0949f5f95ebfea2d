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
	"fmt"
	"regexp"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

type problem struct {
	regexp     *regexp.Regexp
	suggestion string
}

func re(s string) *regexp.Regexp {
	return regexp.MustCompile(s)
}

var knownProblems = []problem{
	{
		regexp:     re(`(?i)UNAUTHORIZED|denied: |authentication required`),
		suggestion: "check that an auth entry in the kaniko-remote config matches the destination registry",
	},
	{
		regexp:     re(`(?i)no such host|connection refused|i/o timeout`),
		suggestion: "check that the cluster is reachable with the configured kubeconfig and context",
	},
	{
		regexp:     re(`(?i)exceeded quota|Insufficient (cpu|memory)`),
		suggestion: "try lowering builder.cpu or builder.memory",
	},
}

// requiredPermissions lists the RBAC verbs the tool needs in the build namespace.
const requiredPermissions = "create, get, list, watch and delete on pods, get on pods/log, and create on pods/exec"

// WithSuggestion annotates err with a hint for known problems.
func WithSuggestion(err error) error {
	if err == nil {
		return nil
	}
	if apierrors.IsForbidden(err) {
		return fmt.Errorf("%w. The build needs %s", err, requiredPermissions)
	}
	for _, p := range knownProblems {
		if p.regexp.MatchString(err.Error()) {
			return fmt.Errorf("%w. Hint: %s", err, p.suggestion)
		}
	}
	return err
}
