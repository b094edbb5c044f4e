/*
Copyright 2019 The Kubernetes Authors.

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

// Package kubernetes gives GR checks access to the EO cluster of a site.
package kubernetes

import (
	"context"
	"flag"
	"os"

	clientset "k8s.io/client-go/kubernetes"
	restclient "k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
)

// GetKubeConfig helps retrieve Kubernetes Config. An explicit path wins over
// the kubeconfig flag and the KUBECONFIG environment variable. The in-cluster
// config is used when none is set.
func GetKubeConfig(ctx context.Context, kubecfgPath string) (*restclient.Config, error) {
	log := logger.GetLogger(ctx)
	var config *restclient.Config
	var err error
	if kubecfgPath == "" {
		kubecfgPath = getKubeConfigPath(ctx)
	}
	if kubecfgPath != "" {
		log.Infof("k8s client using kubeconfig from %s", kubecfgPath)
		config, err = clientcmd.BuildConfigFromFlags("", kubecfgPath)
		if err != nil {
			log.Errorf("BuildConfigFromFlags failed %v", err)
			return nil, err
		}
	} else {
		log.Info("k8s client using in-cluster config")
		config, err = restclient.InClusterConfig()
		if err != nil {
			log.Errorf("InClusterConfig failed %v", err)
			return nil, err
		}
	}
	return config, nil
}

// getKubeConfigPath returns the kubeconfig flag value, falling back to the
// KUBECONFIG environment variable.
func getKubeConfigPath(ctx context.Context) string {
	log := logger.GetLogger(ctx)
	var kubecfgPath string
	if f := flag.Lookup("kubeconfig"); f != nil {
		if getter, ok := f.Value.(flag.Getter); ok {
			kubecfgPath, _ = getter.Get().(string)
		}
	}
	if kubecfgPath != "" {
		log.Debugf("kubeconfig path from flag: %s", kubecfgPath)
		return kubecfgPath
	}
	kubecfgPath = os.Getenv(clientcmd.RecommendedConfigPathEnvVar)
	if kubecfgPath != "" {
		log.Debugf("kubeconfig path from env %s: %s", clientcmd.RecommendedConfigPathEnvVar, kubecfgPath)
	}
	return kubecfgPath
}

// NewClient creates a new k8s client for the given kubeconfig.
func NewClient(ctx context.Context, kubecfgPath string) (clientset.Interface, error) {
	log := logger.GetLogger(ctx)
	config, err := GetKubeConfig(ctx, kubecfgPath)
	if err != nil {
		log.Errorf("Failed to get KubeConfig. err: %v", err)
		return nil, err
	}
	return clientset.NewForConfig(config)
}
