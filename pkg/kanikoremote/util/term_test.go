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

package util

import (
	"bytes"
	"os"
	"testing"

	"github.com/kaniko-remote/kaniko-remote/testutil"
)

func TestIsTerminal(t *testing.T) {
	testutil.Run(t, "buffer", func(t *testutil.T) {
		_, isTerm := IsTerminal(&bytes.Buffer{})

		t.CheckFalse(isTerm)
	})

	testutil.Run(t, "regular file", func(t *testutil.T) {
		f, err := os.CreateTemp(t.TempDir(), "out")
		t.CheckNoError(err)
		defer f.Close()

		_, isTerm := IsTerminal(f)

		t.CheckFalse(isTerm)
	})
}
