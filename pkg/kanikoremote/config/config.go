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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/imdario/mergo"
	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/constants"
	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
)

var (
	// for testing
	currentUser            = user.Current
	inClusterNamespacePath = constants.InClusterNamespacePath
)

// Provider is the read-only view of the configuration used by the builder.
type Provider interface {
	BuilderOptions() BuilderConfig
	Namespace() string
	ListAllAuthorisers() []string
	ListAlwaysMountAuthorisers() []string
	AuthoriserOptions(url string) (AuthConfig, bool)
}

// Load reads the configuration at path. An empty path searches the default
// locations and falls back to the default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		path = find()
	}
	if path == "" {
		logrus.Info("Using default configuration")
		return Parse(nil)
	}

	logrus.Infof("Using configuration file %s", path)
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, &kerrors.ConfigurationError{Msg: fmt.Sprintf("reading %s", path), Err: err}
	}
	return Parse(buf)
}

// find returns the first configuration file found, or "".
func find() string {
	if env := os.Getenv(constants.ConfigEnvironmentVariable); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env
		}
		logrus.Warnf("No configuration file found at %s", env)
	}

	candidates := []string{constants.ConfigFileName}
	if home, err := homedir.Dir(); err == nil {
		candidates = append(candidates, filepath.Join(home, constants.ConfigFileName))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Parse decodes a configuration document and applies defaults.
func Parse(buf []byte) (*Config, error) {
	cfg := &Config{}

	decoder := yaml.NewDecoder(bytes.NewReader(buf))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		var cfgErr *kerrors.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, cfgErr
		}
		return nil, &kerrors.ConfigurationError{Msg: "parsing configuration (allowed top level options are 'kubernetes', 'builder', 'tags' and 'auth')", Err: err}
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(cfg.Auth) == 0 {
		logrus.Warn("No auth configured. This is unlikely to work in a production environment.")
	}
	return cfg, nil
}

func defaultBuilder() BuilderConfig {
	name := "anonymous"
	if u, err := currentUser(); err == nil && u.Username != "" {
		name = u.Username
	}
	return BuilderConfig{
		Name:                  name,
		CPU:                   constants.DefaultCPU,
		Memory:                constants.DefaultMemory,
		KanikoImage:           constants.DefaultKanikoImage,
		SetupImage:            constants.DefaultSetupImage,
		AdditionalKanikoArgs:  slices.Clone(constants.DefaultKanikoArgs),
		PodStartTimeout:       int(constants.DefaultPodStartTimeout / time.Second),
		PodTransferPacketSize: constants.DefaultTransferPacketSize,
	}
}

func (c *Config) setDefaults() error {
	// mergo cannot tell `additionalKanikoArgs: []` from a missing key.
	noKanikoArgs := c.Builder.AdditionalKanikoArgs != nil && len(c.Builder.AdditionalKanikoArgs) == 0

	if err := mergo.Merge(&c.Builder, defaultBuilder()); err != nil {
		return fmt.Errorf("applying builder defaults: %w", err)
	}
	if noKanikoArgs {
		c.Builder.AdditionalKanikoArgs = []string{}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Builder.PodStartTimeout < 0 {
		return kerrors.NewConfigurationError("builder.podStartTimeout must be positive")
	}
	if c.Builder.PodTransferPacketSize < 0 {
		return kerrors.NewConfigurationError("builder.podTransferPacketSize must be positive")
	}

	seen := map[string]bool{}
	for _, a := range c.Auth {
		if seen[a.URL()] {
			return kerrors.NewConfigurationError("auth url '%s' is configured more than once", a.URL())
		}
		seen[a.URL()] = true
	}
	return nil
}

// BuilderOptions returns the builder section with defaults applied.
func (c *Config) BuilderOptions() BuilderConfig {
	return c.Builder
}

func (c *Config) KubernetesOptions() KubernetesConfig {
	return c.Kubernetes
}

func (c *Config) TagOptions() TagsConfig {
	return c.Tags
}

// Namespace returns the configured namespace. Without one, a builder running
// inside a cluster uses its own namespace, anything else uses "default".
func (c *Config) Namespace() string {
	if c.Kubernetes.Namespace != "" {
		return c.Kubernetes.Namespace
	}
	if os.Getenv(constants.InClusterEnvironmentVariable) != "" {
		if ns, err := os.ReadFile(inClusterNamespacePath); err == nil && len(bytes.TrimSpace(ns)) > 0 {
			return strings.TrimSpace(string(ns))
		}
	}
	return constants.DefaultNamespace
}

func (c *Config) PodStartTimeout() time.Duration {
	return time.Duration(c.Builder.PodStartTimeout) * time.Second
}

// ListAllAuthorisers returns every auth url in configuration order.
func (c *Config) ListAllAuthorisers() []string {
	var urls []string
	for _, a := range c.Auth {
		urls = append(urls, a.URL())
	}
	return urls
}

// ListAlwaysMountAuthorisers returns the urls of the auth entries applied to every build.
func (c *Config) ListAlwaysMountAuthorisers() []string {
	var urls []string
	for _, a := range c.Auth {
		if a.AlwaysMount() {
			urls = append(urls, a.URL())
		}
	}
	return urls
}

func (c *Config) AuthoriserOptions(url string) (AuthConfig, bool) {
	for _, a := range c.Auth {
		if a.URL() == url {
			return a, true
		}
	}
	return AuthConfig{}, false
}
