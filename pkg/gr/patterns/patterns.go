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

// Package patterns holds every label, pattern and command template shared
// with the Deployment Manager CLI. Its output is not structured, so this is
// the only place that needs to change when the tool's wording does.
package patterns

import (
	"fmt"
	"regexp"
)

// Field labels of the geo status report. They must match byte for byte.
const (
	ActiveApplications        = "Active Applications"
	LastExportedBackup        = "Last Exported Backup"
	LastImportedBackup        = "Last Imported Backup"
	ClusterVersion            = "Cluster Version of EO"
	LastImageSync             = "Last Successful Image Synchronisation"
	PrimaryHostMatchesDNS     = "Primary GR Host matches DNS Entry"
	PrimaryDetails            = "Primary Details"
	SecondaryDetails          = "Secondary Details"
	NoPrimaryDetailsFound     = "No Primary Details Found"
	BackupNotFoundMarker      = "not found"
	ImageSyncNeverExecuted    = "never executed"
	ImageSyncTimeLayout       = "2006-01-02 03:04:05 PM"
	SiteInfoStateOK           = "OK"
	SiteInfoStateFailed       = "FAILED"
	RecoveryStatusRecoverable = "RECOVERABLE"
	RecoveryStatusNotRecov    = "NOT_RECOVERABLE"
	RecoveryStatusInProgress  = "RECOVERY_IN_PROGRESS"
	ActiveApplicationEVNFM    = "evnfm"
	ActiveApplicationVMVNFM   = "vmvnfm"
	HAStatefulSetMarker       = "-ha"
)

// Block and output patterns.
var (
	// PrimaryBlock captures everything between the Primary and Secondary
	// headers. Use with dot-all.
	PrimaryBlock = regexp.QuoteMeta(PrimaryDetails) + "(.*)" + regexp.QuoteMeta(SecondaryDetails)
	// SecondaryBlock captures everything after the Secondary header. Use with
	// dot-all.
	SecondaryBlock = regexp.QuoteMeta(SecondaryDetails) + "(.*)"

	SwitchoverSuccess = `Switchover\sStatus.*:\sSUCCESS`
	SwitchoverFailure = `Switchover\sStatus.*:\sFAILURE`
	NoHealthyUpstream = `Error\sMessage.*:.*Secondary\ssite\sswitchover\sprocess\shas\sfailed`
	NoFreeMemory      = regexp.QuoteMeta(`{"statusCode":500,"message":"Error handling persisted file"}`)
	Availability      = `Availability.*:\sAvailable`
	BackupID          = `Backup\sId\s+:\s(.*?)\n`
	RecoveryStatus    = `clusterStatus':\s*'([^']+)`

	ArchiveLog      = `Generated file s*(.*tgz)`
	ExecutionLog    = `Logging to logs/s*(.*log)`
	DMVersionInFile = `deployment-manager-(\d*\.\d*\.\d*).zip`
)

// Field builds the pattern extracting the value of key from a status block.
// Only blanks are allowed around the colon, so an empty value is not
// confused with the next line.
func Field(key string) string {
	return regexp.QuoteMeta(key) + `[ \t]*:[ \t]*(.*)`
}

// RecoverableAfterUpdate builds the message update-recovery-state prints for
// the given cluster once it became recoverable.
func RecoverableAfterUpdate(cluster string) string {
	return fmt.Sprintf(`Cluster\s%s\sstatus\safter\supdate-recovery-state\sis\sRECOVERABLE`, regexp.QuoteMeta(cluster))
}

// Deployment Manager commands.
const (
	SwitchoverCmd           = "geo switchover --new-primary=%s --new-secondary=%s"
	SwitchoverWithBackupCmd = SwitchoverCmd + " --backup-id=%s"
	StatusCmd               = "geo status"
	AvailabilityCmd         = "geo availability  --new-primary=%s --new-secondary=%s"
	CollectLogsCmd          = "collect-logs -n %s"
	RecoveryStatusCmd       = "geo recovery-status --recover-site %s"
	UpdateRecoveryStateCmd  = "geo update-recovery-state --recover-site %s"
	DNSFlag                 = "--dns %s"
	DMLocalDockerCmd        = "docker run --rm -u $(id -u):$(id -g) -v %s:/workdir -v /etc/hosts:/etc/hosts -v /var/run/docker.sock:/var/run/docker.sock %s %s -v %d"
	DMRemoteDockerCmd       = "cd %s && docker run --rm -u $(id -u):$(id -g) %s -v $PWD:/workdir -v /etc/hosts:/etc/hosts -v /var/run/docker.sock:/var/run/docker.sock deployment-manager:%s %s -v %d"
	EONodeWorkdir           = "/eo/workdir/workdir_%s/"
	EONodeLogsDir           = EONodeWorkdir + "logs/"
	ListWorkdirCmd          = "ls %s"
	RemoveFileCmd           = "rm -f %s"
)
