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

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempDir offers actions on a temp directory.
type TempDir struct {
	t    *testing.T
	root string
}

// NewTempDir creates a temporary directory removed at the end of the test.
func (t *T) NewTempDir() *TempDir {
	return NewTempDir(t.T)
}

func NewTempDir(t *testing.T) *TempDir {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return &TempDir{t: t, root: root}
}

// Root returns the temp directory.
func (h *TempDir) Root() string {
	return h.root
}

// Path returns the path to a file in the temp directory.
func (h *TempDir) Path(file string) string {
	return filepath.Join(h.root, filepath.FromSlash(file))
}

// Write writes a file in the temp directory, creating parent folders.
func (h *TempDir) Write(file, content string) *TempDir {
	h.t.Helper()
	path := h.Path(file)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		h.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), os.ModePerm); err != nil {
		h.t.Fatal(err)
	}
	return h
}

// WriteFiles writes multiple files.
func (h *TempDir) WriteFiles(files map[string]string) *TempDir {
	for path, content := range files {
		h.Write(path, content)
	}
	return h
}

// Touch creates a list of empty files.
func (h *TempDir) Touch(files ...string) *TempDir {
	for _, file := range files {
		h.Write(file, "")
	}
	return h
}

// Mkdir creates a sub directory.
func (h *TempDir) Mkdir(dir string) *TempDir {
	h.t.Helper()
	if err := os.MkdirAll(h.Path(dir), os.ModePerm); err != nil {
		h.t.Fatal(err)
	}
	return h
}

// Chdir changes the current directory for the duration of the test.
func (h *TempDir) Chdir() {
	h.t.Helper()
	pwd, err := os.Getwd()
	if err != nil {
		h.t.Fatal("unable to get current directory")
	}
	if err := os.Chdir(h.root); err != nil {
		h.t.Fatal("unable to change current directory")
	}
	h.t.Cleanup(func() {
		if err := os.Chdir(pwd); err != nil {
			h.t.Fatal("unable to reset working directory")
		}
	})
}
