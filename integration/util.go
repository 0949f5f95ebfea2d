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

package integration

import (
	"os"
	"testing"

	k8s "k8s.io/client-go/kubernetes"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/config"
	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/kubernetes"
	kubectx "github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/kubernetes/context"
	"github.com/kaniko-remote/kaniko-remote/testutil"
)

// MarkIntegrationTest skips unless a cluster is available for builds.
func MarkIntegrationTest(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("KANIKO_REMOTE_INTEGRATION") == "" {
		t.Skip("skipping integration test, set KANIKO_REMOTE_INTEGRATION to run against the current kube-context")
	}
}

// testConfig builds without pushing so that no registry is needed.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
kubernetes:
  namespace: ` + namespace() + `
builder:
  name: integration
  podStartTimeout: 180
  additionalKanikoArgs: ["--no-push"]
tags:
  default: kaniko-remote-integration:latest
`))
	if err != nil {
		t.Fatal(err)
	}
	k := cfg.KubernetesOptions()
	kubectx.ConfigureKubeConfig(k.Kubeconfig, k.Context)
	return cfg
}

func namespace() string {
	if ns := os.Getenv("KANIKO_REMOTE_INTEGRATION_NAMESPACE"); ns != "" {
		return ns
	}
	return "default"
}

func kubeClient(t *testutil.T) k8s.Interface {
	client, err := kubernetes.Client()
	if err != nil {
		t.Fatalf("creating kubernetes client: %v", err)
	}
	return client
}
