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

package transfer

import (
	"github.com/pterm/pterm"
)

type progress interface {
	Increment()
	Stop()
}

type nopProgress struct{}

func (nopProgress) Increment() {}
func (nopProgress) Stop()      {}

var noProgress progress = nopProgress{}

type ptermProgress struct {
	bar *pterm.ProgressbarPrinter
}

func (p *ptermProgress) Increment() {
	p.bar.Increment()
}

func (p *ptermProgress) Stop() {
	_, _ = p.bar.Stop()
}

// for tests
var newProgressBar = func(title string, total int) progress {
	bar, err := pterm.DefaultProgressbar.
		WithTitle(title).
		WithTotal(total).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return noProgress
	}
	return &ptermProgress{bar: bar}
}
