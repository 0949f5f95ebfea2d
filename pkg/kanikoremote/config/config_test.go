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
	"errors"
	"os/user"
	"testing"

	kerrors "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/errors"
	"github.com/kaniko-remote/kaniko-remote/testutil"
)

func fakeUser(t *testutil.T) {
	t.Override(&currentUser, func() (*user.User, error) { return &user.User{Username: "alice"}, nil })
}

func TestParseDefaults(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		fakeUser(t)

		cfg, err := Parse(nil)

		t.CheckNoError(err)
		t.CheckDeepEqual(BuilderConfig{
			Name:                  "alice",
			CPU:                   "1",
			Memory:                "1G",
			KanikoImage:           "gcr.io/kaniko-project/executor:latest",
			SetupImage:            "busybox:stable",
			AdditionalKanikoArgs:  []string{"--use-new-run"},
			PodStartTimeout:       300,
			PodTransferPacketSize: 14000,
		}, cfg.BuilderOptions())
		t.CheckDeepEqual("default", cfg.Namespace())
		t.CheckEmpty(cfg.ListAllAuthorisers())
	})
}

func TestParse(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		fakeUser(t)

		cfg, err := Parse([]byte(`
kubernetes:
  kubeconfig: /tmp/kubeconfig
  context: builds
  namespace: ci
builder:
  name: ci-bot
  memory: 4Gi
  additionalLabels:
    team: infra
  additionalKanikoArgs: ["--snapshot-mode=redo"]
  keepPod: true
  podOverride:
    spec:
      nodeSelector:
        pool: builds
tags:
  prefix: myregistry.azurecr.io
auth:
  - url: myregistry.azurecr.io
    type: acr
    token: abc123
    env:
      - fromSecret: acr-creds
      - name: AZURE_CLIENT_ID
        value: "1234"
  - url: other.example.com
    mount: always
    serviceAccount: builder
    volumes:
      - fromConfigMap: certs
        mountPath: /etc/ssl/certs
`))

		t.CheckNoError(err)
		t.CheckDeepEqual(KubernetesConfig{Kubeconfig: "/tmp/kubeconfig", Context: "builds", Namespace: "ci"}, cfg.KubernetesOptions())
		t.CheckDeepEqual("ci", cfg.Namespace())
		b := cfg.BuilderOptions()
		t.CheckDeepEqual("ci-bot", b.Name)
		t.CheckDeepEqual("4Gi", b.Memory)
		t.CheckDeepEqual("1", b.CPU)
		t.CheckDeepEqual([]string{"--snapshot-mode=redo"}, b.AdditionalKanikoArgs)
		t.CheckDeepEqual(map[string]string{"team": "infra"}, b.AdditionalLabels)
		t.CheckTrue(b.KeepPod)
		t.CheckDeepEqual(map[string]interface{}{"spec": map[string]interface{}{"nodeSelector": map[string]interface{}{"pool": "builds"}}}, b.PodOverride)
		t.CheckDeepEqual(TagsConfig{Prefix: "myregistry.azurecr.io"}, cfg.TagOptions())

		t.CheckDeepEqual([]string{"myregistry.azurecr.io", "other.example.com"}, cfg.ListAllAuthorisers())
		t.CheckDeepEqual([]string{"other.example.com"}, cfg.ListAlwaysMountAuthorisers())

		acr, found := cfg.AuthoriserOptions("myregistry.azurecr.io")
		t.CheckTrue(found)
		t.CheckDeepEqual(AuthConfig{
			Type: ACR,
			ACR: &ACRAuth{
				PodOnlyAuth: PodOnlyAuth{
					Common: Common{URL: "myregistry.azurecr.io", Mount: MountOnMatch},
					Env: []EnvEntry{
						{FromSecret: "acr-creds"},
						{Name: "AZURE_CLIENT_ID", Value: "1234"},
					},
				},
				Token: "abc123",
			},
		}, acr)

		other, found := cfg.AuthoriserOptions("other.example.com")
		t.CheckTrue(found)
		t.CheckDeepEqual(AuthConfig{
			Type: PodOnly,
			PodOnly: &PodOnlyAuth{
				Common:         Common{URL: "other.example.com", Mount: MountAlways},
				ServiceAccount: "builder",
				Volumes:        []VolumeEntry{{FromConfigMap: "certs", MountPath: "/etc/ssl/certs"}},
			},
		}, other)

		_, found = cfg.AuthoriserOptions("missing.io")
		t.CheckFalse(found)
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		description string
		yaml        string
		contains    string
	}{
		{
			description: "unknown top level key",
			yaml:        "builders: {}",
			contains:    "builders",
		},
		{
			description: "unknown builder key",
			yaml:        "builder:\n  cpus: 2",
			contains:    "cpus",
		},
		{
			description: "unknown auth type",
			yaml:        "auth:\n  - url: r.io\n    type: ecr",
			contains:    `unknown auth type "ecr"`,
		},
		{
			description: "leftover auth keys are listed",
			yaml:        "auth:\n  - url: r.io\n    type: pod-only\n    token: abc\n    registry: x",
			contains:    "unknown keys in auth entry for 'r.io': token, registry",
		},
		{
			description: "env with secret and literal",
			yaml:        "auth:\n  - url: r.io\n    env:\n      - fromSecret: s\n        name: A\n        value: B",
			contains:    "invalid auth config for 'r.io'. Env must specify one of",
		},
		{
			description: "env with name only",
			yaml:        "auth:\n  - url: r.io\n    env:\n      - name: A",
			contains:    "got: {name: A}",
		},
		{
			description: "env with unknown key",
			yaml:        "auth:\n  - url: r.io\n    env:\n      - key: A\n        value: B",
			contains:    "unknown keys in env of auth entry for 'r.io': key",
		},
		{
			description: "volume without mount path",
			yaml:        "auth:\n  - url: r.io\n    volumes:\n      - fromSecret: s",
			contains:    "Volume with missing 'mountPath'",
		},
		{
			description: "volume with both sources",
			yaml:        "auth:\n  - url: r.io\n    volumes:\n      - fromSecret: s\n        fromConfigMap: c\n        mountPath: /x",
			contains:    "Volume must specify either 'fromSecret' or 'fromConfigMap'",
		},
		{
			description: "invalid mount",
			yaml:        "auth:\n  - url: r.io\n    mount: sometimes",
			contains:    "auth 'mount' must be one of",
		},
		{
			description: "missing url",
			yaml:        "auth:\n  - type: acr",
			contains:    "require a 'url'",
		},
		{
			description: "always mounted entry without url",
			yaml:        "auth:\n  - type: gcr\n    mount: always",
			contains:    "require a 'url'",
		},
		{
			description: "docker hub without password",
			yaml:        "auth:\n  - type: docker-hub\n    username: bob",
			contains:    "'username' and 'password'",
		},
		{
			description: "duplicate url",
			yaml:        "auth:\n  - url: r.io\n  - url: r.io\n    mount: always",
			contains:    "more than once",
		},
		{
			description: "not yaml",
			yaml:        "builder: [",
			contains:    "parsing configuration",
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			fakeUser(t)

			_, err := Parse([]byte(test.yaml))

			t.CheckErrorContains(test.contains, err)
			var cfgErr *kerrors.ConfigurationError
			t.CheckTrue(errors.As(err, &cfgErr))
		})
	}
}

func TestParseKanikoArgs(t *testing.T) {
	tests := []struct {
		description string
		yaml        string
		expected    []string
	}{
		{description: "absent key uses the default", yaml: "builder:\n  name: bob", expected: []string{"--use-new-run"}},
		{description: "explicit empty list disables the default", yaml: "builder:\n  additionalKanikoArgs: []", expected: []string{}},
		{description: "configured args replace the default", yaml: "builder:\n  additionalKanikoArgs: [--cache=true]", expected: []string{"--cache=true"}},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			fakeUser(t)

			cfg, err := Parse([]byte(test.yaml))

			t.CheckNoError(err)
			t.CheckDeepEqual(test.expected, cfg.BuilderOptions().AdditionalKanikoArgs)
		})
	}
}

func TestDockerHubDefaultURL(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		fakeUser(t)

		cfg, err := Parse([]byte("auth:\n  - type: docker-hub\n    username: bob\n    password: secret\n    mount: on-match"))

		t.CheckNoError(err)
		t.CheckDeepEqual([]string{"docker.io"}, cfg.ListAllAuthorisers())
		t.CheckDeepEqual(MountOnMatch, cfg.Auth[0].DockerHub.Mount)
	})
}

func TestNamespaceInCluster(t *testing.T) {
	tests := []struct {
		description string
		configured  string
		inCluster   bool
		expected    string
	}{
		{description: "configured wins", configured: "ci", inCluster: true, expected: "ci"},
		{description: "in cluster", inCluster: true, expected: "builds"},
		{description: "outside cluster", expected: "default"},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			tmp := t.NewTempDir().Write("namespace", "builds\n")
			t.Override(&inClusterNamespacePath, tmp.Path("namespace"))
			if test.inCluster {
				t.SetEnvs(map[string]string{"KUBERNETES_SERVICE_HOST": "10.0.0.1"})
			} else {
				t.UnsetEnv("KUBERNETES_SERVICE_HOST")
			}

			cfg := &Config{Kubernetes: KubernetesConfig{Namespace: test.configured}}

			t.CheckDeepEqual(test.expected, cfg.Namespace())
		})
	}
}

func TestLoad(t *testing.T) {
	testutil.Run(t, "from environment variable", func(t *testutil.T) {
		fakeUser(t)
		tmp := t.NewTempDir().Write("custom.yaml", "builder:\n  cpu: \"2\"")
		t.SetEnvs(map[string]string{"KANIKO_REMOTE_CONFIG": tmp.Path("custom.yaml")})

		cfg, err := Load("")

		t.CheckNoError(err)
		t.CheckDeepEqual("2", cfg.BuilderOptions().CPU)
	})

	testutil.Run(t, "from working directory", func(t *testutil.T) {
		fakeUser(t)
		t.SetEnvs(map[string]string{"KANIKO_REMOTE_CONFIG": ""})
		tmp := t.NewTempDir().Write(".kaniko-remote.yaml", "builder:\n  memory: 2G")
		tmp.Chdir()

		cfg, err := Load("")

		t.CheckNoError(err)
		t.CheckDeepEqual("2G", cfg.BuilderOptions().Memory)
	})

	testutil.Run(t, "explicit missing file", func(t *testutil.T) {
		_, err := Load("/does/not/exist.yaml")

		t.CheckErrorContains("reading /does/not/exist.yaml", err)
	})
}
