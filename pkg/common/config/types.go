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

package config

// Config is used to read and store information from the GR testing
// configuration file.
type Config struct {
	Global struct {
		// Name of the site that is currently active.
		ActiveSite string `gcfg:"active-site"`
		// Name of the site that is currently passive.
		PassiveSite string `gcfg:"passive-site"`
		// Directory holding env_<site>.yaml files. Sites found there are
		// merged with the [Site] sections of this file.
		SitesDir string `gcfg:"sites-dir"`
	}

	// DeploymentManager configures how Deployment Manager commands are run.
	DeploymentManager struct {
		// Image used to run the Deployment Manager locally.
		DockerImage string `gcfg:"docker-image"`
		// Deployment Manager version used on the EO node. Discovered from
		// the workdir when empty.
		Version string `gcfg:"version"`
		// Host directory mounted as the Deployment Manager workdir.
		HostLocalPwd string `gcfg:"host-local-pwd"`
		// One of CRITICAL, ERROR, WARNING, INFO, DEBUG.
		LogLevel string `gcfg:"log-level"`
		// DNS server passed to docker on the EO node.
		DNSServerIP string `gcfg:"dns-server-ip"`
		// Run commands on the EO node over SSH instead of locally.
		RVSetup bool `gcfg:"rv-setup"`
	}

	// Site configurations keyed by site name.
	Site map[string]*SiteConfig
}

// SiteConfig contains everything needed to reach one GR site.
type SiteConfig struct {
	// Environment name, used for workdir and log names.
	EnvName string `gcfg:"env-name" yaml:"ENV_NAME"`
	// GR host of the site, also the address of its GR docker registry.
	GRHost string `gcfg:"gr-host" yaml:"GR_HOST"`
	// GR REST user.
	GRUser string `gcfg:"gr-user" yaml:"GR_USER_NAME"`
	// GR REST password in clear text.
	GRPassword string `gcfg:"gr-password" yaml:"GR_USER_PASSWORD"`
	// True for the site that was primary when GR was installed.
	OriginalPrimary bool `gcfg:"original-primary" yaml:"GR_ORIGINAL_PRIMARY"`
	// EO namespace.
	Namespace string `gcfg:"namespace" yaml:"CODEPLOY_NAMESPACE"`
	// Path to the kubeconfig of the site cluster.
	Kubeconfig string `gcfg:"kubeconfig" yaml:"CCD_KUBECONFIG_PATH"`
	// GR docker registry credentials.
	RegistryUser     string `gcfg:"registry-user" yaml:"REGISTRY_USER_NAME"`
	RegistryPassword string `gcfg:"registry-password" yaml:"REGISTRY_USER_PASSWORD"`
	// Skip TLS verification towards the registry.
	RegistryInsecure bool `gcfg:"registry-insecure" yaml:"REGISTRY_INSECURE"`
	// EO node reached over SSH in RV setups.
	EONodeHost     string `gcfg:"eo-node-host" yaml:"EO_NODE_HOST"`
	EONodeUser     string `gcfg:"eo-node-user" yaml:"EO_NODE_USER"`
	EONodePassword string `gcfg:"eo-node-password" yaml:"EO_NODE_PASSWORD"`
	// Whether VM VNFM is part of the installation.
	VMVNFMInstalled bool `gcfg:"vmvnfm-installed" yaml:"VMVNFM_INSTALLED"`
}
