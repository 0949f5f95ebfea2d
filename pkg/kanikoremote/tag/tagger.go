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

package tag

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/sirupsen/logrus"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/config"
	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
)

type rewrite struct {
	re          *regexp.Regexp
	replacement string
}

// Tagger adjusts the destinations given on the command line according to
// the tags section of the configuration.
type Tagger struct {
	opts     config.TagsConfig
	rewrites []rewrite
}

// NewTagger validates the tag options. Static tags cannot be combined with
// any other option.
func NewTagger(opts config.TagsConfig) (*Tagger, error) {
	if opts.Static != "" && (opts.Default != "" || opts.Prefix != "" || len(opts.Regexes) > 0) {
		return nil, kerrors.NewConfigurationError("no other tags options may be configured when 'static' is set")
	}

	t := &Tagger{opts: opts}
	for _, pattern := range slices.Sorted(maps.Keys(opts.Regexes)) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &kerrors.ConfigurationError{Msg: fmt.Sprintf("invalid tags regex %q", pattern), Err: err}
		}
		t.rewrites = append(t.rewrites, rewrite{re: re, replacement: opts.Regexes[pattern]})
	}
	return t, nil
}

// Transform returns the destinations to push to.
func (t *Tagger) Transform(tags []string) ([]string, error) {
	out, err := t.transform(tags)
	if err != nil {
		return nil, err
	}
	for _, tag := range out {
		if _, err := name.ParseReference(tag); err != nil {
			return nil, kerrors.NewConfigurationError("invalid destination %q: %v", tag, err)
		}
	}
	return out, nil
}

func (t *Tagger) transform(tags []string) ([]string, error) {
	if t.opts.Static != "" {
		logrus.Warnf("Overwriting destination with static tag: %s", t.opts.Static)
		return []string{t.opts.Static}, nil
	}

	if len(tags) == 0 {
		if t.opts.Default == "" {
			return nil, kerrors.NewConfigurationError("no tag specified and no default tag configured, specify a tag with -t")
		}
		logrus.Warnf("Using configured default tag %s", t.opts.Default)
		return []string{t.opts.Default}, nil
	}

	if t.opts.Prefix == "" && len(t.rewrites) == 0 {
		return tags, nil
	}

	var out []string
	for _, tag := range tags {
		out = append(out, t.adjust(tag))
	}
	logrus.Infof("Adjusted tags to %s", strings.Join(out, ", "))
	return out, nil
}

func (t *Tagger) adjust(tag string) string {
	for _, r := range t.rewrites {
		if r.re.MatchString(tag) {
			return r.re.ReplaceAllString(tag, r.replacement)
		}
	}
	if t.opts.Prefix != "" {
		return strings.TrimSuffix(t.opts.Prefix, "/") + "/" + tag
	}
	return tag
}
