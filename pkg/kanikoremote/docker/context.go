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

package docker

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/constants"
	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/walk"
)

// remoteSchemes are the context locations kaniko fetches by itself.
var remoteSchemes = []string{"git", "gs", "s3", "https", "http", "azblob", "tar"}

// IsLocalContext reports whether the context is a directory on this machine.
func IsLocalContext(context string) bool {
	u, err := url.Parse(context)
	if err != nil || u.Scheme == "" {
		return true
	}
	for _, s := range remoteSchemes {
		if strings.EqualFold(u.Scheme, s) {
			return false
		}
	}
	// Windows drive letters parse as a one letter scheme.
	return len(u.Scheme) == 1
}

// ValidateDockerfile checks that the dockerfile exists inside a local context
// and returns its path relative to the context.
func ValidateDockerfile(context, dockerfile string) (string, error) {
	if dockerfile == "" {
		dockerfile = constants.DefaultDockerfilePath
	}

	abs := dockerfile
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(context, dockerfile)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &kerrors.ContextError{Path: context, Msg: fmt.Sprintf("dockerfile %q not found", dockerfile)}
	}
	if info.IsDir() {
		return "", &kerrors.ContextError{Path: context, Msg: fmt.Sprintf("dockerfile %q is a directory", dockerfile)}
	}

	rel, err := filepath.Rel(context, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", &kerrors.ContextError{Path: context, Msg: fmt.Sprintf("dockerfile %q must be inside the context", dockerfile)}
	}
	return filepath.ToSlash(rel), nil
}

// ContextFiles returns a lazy walker over the files of a local context that
// are not excluded by its .dockerignore. The dockerfile, given relative to the
// context, is always included, as docker does.
func ContextFiles(context, dockerfile string) (walk.Walker, error) {
	excludes, err := ReadDockerignore(context)
	if err != nil {
		return nil, &kerrors.ContextError{Path: context, Msg: err.Error()}
	}
	if len(excludes) > 0 {
		logrus.Debugf("Excluding %d .dockerignore patterns from the context", len(excludes))
	}

	predicate, err := NewDockerIgnorePredicate(context, excludes)
	if err != nil {
		return nil, &kerrors.ContextError{Path: context, Msg: err.Error()}
	}
	if dockerfile == "" {
		dockerfile = constants.DefaultDockerfilePath
	}
	predicate = orDockerfile(predicate, filepath.Join(context, filepath.FromSlash(dockerfile)))

	// The ignore file has already been applied, kaniko does not need it.
	notIgnoreFile := func(path string, _ walk.Dirent) (bool, error) {
		return path != filepath.Join(context, ".dockerignore"), nil
	}
	return walk.From(context).When(predicate).WhenIsFile().When(notIgnoreFile), nil
}

// orDockerfile matches the dockerfile regardless of the ignore rules and never
// skips one of its parent directories.
func orDockerfile(predicate walk.Predicate, dockerfile string) walk.Predicate {
	return func(path string, info walk.Dirent) (bool, error) {
		if path == dockerfile {
			return true, nil
		}
		match, err := predicate(path, info)
		if errors.Is(err, filepath.SkipDir) && strings.HasPrefix(dockerfile, path+string(filepath.Separator)) {
			return false, nil
		}
		return match, err
	}
}
