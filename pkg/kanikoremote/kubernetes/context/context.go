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

package context

import (
	"errors"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	restclient "k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/kaniko-remote/kaniko-remote/pkg/kanikoremote/constants"
)

// For testing
var (
	inClusterConfig = restclient.InClusterConfig
)

var (
	lock         sync.Mutex
	initialized  bool
	contextName  string
	clientCfg    *restclient.Config
	clientCfgErr error
)

// InCluster reports whether we are running inside a kubernetes pod.
func InCluster() bool {
	return os.Getenv(constants.InClusterEnvironmentVariable) != ""
}

// ConfigureKubeConfig loads the client configuration once. Inside a cluster the
// pod's service account is used and kubeconfig/context are ignored.
func ConfigureKubeConfig(kubeConfig, kubeContext string) {
	lock.Lock()
	defer lock.Unlock()

	if InCluster() {
		if kubeConfig != "" || kubeContext != "" {
			logrus.Warn("kubernetes.kubeconfig and kubernetes.context are ignored when running in a kubernetes cluster")
		}
		contextName = "in-cluster"
		clientCfg, clientCfgErr = inClusterConfig()
		initialized = true
		return
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	loadingRules.ExplicitPath = kubeConfig
	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{
		CurrentContext: kubeContext,
	})

	contextName = kubeContext
	if contextName == "" {
		if raw, err := loader.RawConfig(); err == nil {
			contextName = raw.CurrentContext
		}
	}

	// Cache the ClientConfig.
	clientCfg, clientCfgErr = loader.ClientConfig()
	initialized = true
}

// GetRestClientConfig returns a REST client config for API calls against the Kubernetes API.
// The cache ensures that we always work with the identical kubeconfig,
// even if it was changed on disk.
func GetRestClientConfig() (*restclient.Config, error) {
	lock.Lock()
	defer lock.Unlock()

	if !initialized {
		return nil, errors.New("cannot call GetRestClientConfig() before ConfigureKubeConfig()")
	}
	return clientCfg, clientCfgErr
}

// CurrentContext returns the name of the kube-context in use.
func CurrentContext() string {
	lock.Lock()
	defer lock.Unlock()
	return contextName
}
