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

package walk

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/kaniko-remote/kaniko-remote/testutil"
)

func TestWalk(t *testing.T) {
	tests := []struct {
		description string
		walk        func(root string) Walker
		expected    []string
	}{
		{
			description: "everything",
			walk:        func(root string) Walker { return From(root) },
			expected:    []string{"", "a.txt", "sub", "sub/b.txt", "sub/c.go"},
		},
		{
			description: "files only",
			walk:        func(root string) Walker { return From(root).WhenIsFile() },
			expected:    []string{"a.txt", "sub/b.txt", "sub/c.go"},
		},
		{
			description: "custom predicate",
			walk: func(root string) Walker {
				return From(root).WhenIsFile().When(func(path string, _ Dirent) (bool, error) {
					return strings.HasSuffix(path, ".txt"), nil
				})
			},
			expected: []string{"a.txt", "sub/b.txt"},
		},
		{
			description: "skip dir",
			walk: func(root string) Walker {
				return From(root).When(func(path string, info Dirent) (bool, error) {
					if info.IsDir() && info.Name() == "sub" {
						return false, filepath.SkipDir
					}
					return !info.IsDir(), nil
				})
			},
			expected: []string{"a.txt"},
		},
		{
			description: "single file",
			walk:        func(root string) Walker { return From(filepath.Join(root, "a.txt")).WhenIsFile() },
			expected:    []string{"a.txt"},
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			tmp := t.NewTempDir().Touch("a.txt", "sub/b.txt", "sub/c.go")

			paths, err := test.walk(tmp.Root()).CollectPaths()
			var rel []string
			for _, p := range paths {
				r, _ := filepath.Rel(tmp.Root(), p)
				if r == "." {
					r = ""
				}
				rel = append(rel, filepath.ToSlash(r))
			}

			t.CheckNoError(err)
			t.CheckDeepEqual(test.expected, rel)
		})
	}
}
