/*
Copyright 2024 The Kubernetes Authors.

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

// Package pods defines the EO workloads GR checks act on, by role rather than
// by generated Kubernetes name.
package pods

// Descriptor identifies a deployable unit.
type Descriptor struct {
	// Name is the prefix of the generated pod names.
	Name string
	// Container is the main container of the pod.
	Container string
	// StatefulSet is set when the pod belongs to a stateful set.
	StatefulSet string
	// HACapable marks pods that may run several replicas when HA is on.
	HACapable bool
}

// Roster entries.
var (
	CommonWFS               = Descriptor{Name: "eric-am-common-wfs", Container: "eric-am-common-wfs"}
	EVNFMNBI                = Descriptor{Name: "eric-eo-evnfm-nbi", Container: "eric-eo-evnfm-nbi"}
	VNFMOrchestratorService = Descriptor{
		Name: "eric-vnfm-orchestrator-service", Container: "eric-vnfm-orchestrator-service",
	}
	AMOnboarding  = Descriptor{Name: "eric-am-onboarding-service", Container: "eric-am-onboarding-service"}
	EVNFMCrypto   = Descriptor{Name: "eric-eo-evnfm-crypto", Container: "eric-eo-evnfm-crypto"}
	LMConsumer    = Descriptor{Name: "eric-eo-lm-consumer", Container: "eric-eo-lm-consumer"}
	UserMgmt      = Descriptor{Name: "eric-eo-usermgmt", Container: "eric-eo-usermgmt"}
	EVNFMToscao   = Descriptor{Name: "eric-eo-evnfm-toscao", Container: "eric-eo-evnfm-toscao"}
	VNFLCMService = Descriptor{
		Name: "eric-vnflcm-service", Container: "eric-vnflcm-service",
		StatefulSet: "eric-vnflcm-service", HACapable: true,
	}

	GRBurOrchestrator = Descriptor{Name: "eric-gr-bur-orchestrator", Container: "eric-gr-bur-orchestrator"}
	CtrlBRO           = Descriptor{Name: "eric-ctrl-bro", Container: "eric-ctrl-bro", StatefulSet: "eric-ctrl-bro"}
	VNFLCMDB          = Descriptor{Name: "eric-vnflcm-db", Container: "eric-vnflcm-db", StatefulSet: "eric-vnflcm-db"}
)

// HAReplicas is the replica count of an HA pod when HA is enabled.
const HAReplicas = 2

// HealthCheckCVNFM lists pods that must run on the active site and be absent
// on the passive one, for installations without VM VNFM.
var HealthCheckCVNFM = []Descriptor{
	CommonWFS,
	EVNFMNBI,
	VNFMOrchestratorService,
	AMOnboarding,
	EVNFMCrypto,
	LMConsumer,
	UserMgmt,
	EVNFMToscao,
}

// HealthCheckComplete adds the VM VNFM pods to HealthCheckCVNFM.
var HealthCheckComplete = append(append([]Descriptor{}, HealthCheckCVNFM...), VNFLCMService)

// HealthCheckRoster returns the roster matching the installation.
func HealthCheckRoster(vmvnfmInstalled bool) []Descriptor {
	if vmvnfmInstalled {
		return HealthCheckComplete
	}
	return HealthCheckCVNFM
}

// Environment variables of the BUR orchestrator deployment tuned by GR
// scenarios.
const (
	BurEnvPodUpStateTimeout        = "PODS_UP_STATE_SHORT_TIMEOUT_SECONDS"
	BurEnvLogLevel                 = "LOG_LEVEL"
	BurEnvPrimaryCycleInterval     = "GR_PRIMARY_CYCLE_INTERVAL_SECONDS"
	BurEnvImageSyncIntervalPrimary = "IMAGE_SYNC_CHECK_CYCLE_INTERVAL_SECONDS_PRIMARY"
)

// BurEnvVars lists the BUR orchestrator variables that may be updated.
var BurEnvVars = []string{
	BurEnvPodUpStateTimeout,
	BurEnvLogLevel,
	BurEnvPrimaryCycleInterval,
	BurEnvImageSyncIntervalPrimary,
}
