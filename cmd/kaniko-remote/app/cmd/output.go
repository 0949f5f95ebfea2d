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
	"fmt"
	"io"

	"github.com/acarl005/stripansi"
	"github.com/segmentio/textio"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/util"
)

const builderLogPrefix = "[builder] "

// logPrinter writes builder log lines, prefixed. Colors are kept only when
// the output is a terminal.
type logPrinter struct {
	w     *textio.PrefixWriter
	strip bool
}

func newLogPrinter(out io.Writer) *logPrinter {
	_, isTerm := util.IsTerminal(out)
	return &logPrinter{
		w:     textio.NewPrefixWriter(out, builderLogPrefix),
		strip: !isTerm,
	}
}

func (p *logPrinter) Print(line string) {
	if p.strip {
		line = stripansi.Strip(line)
	}
	fmt.Fprintln(p.w, line)
}

func (p *logPrinter) Flush() error {
	return p.w.Flush()
}
