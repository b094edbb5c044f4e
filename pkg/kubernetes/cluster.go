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

package kubernetes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	clientset "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/util/retry"
	"k8s.io/utils/ptr"

	"github.com/consultant-1379/eo-gr-testing/pkg/common/logger"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/patterns"
	"github.com/consultant-1379/eo-gr-testing/pkg/gr/pods"
)

var (
	// ErrPodNotFound is returned when no pod matches a descriptor.
	ErrPodNotFound = errors.New("pod is not found")
	// ErrStatefulSetNotFound is returned when no stateful set matches a
	// descriptor.
	ErrStatefulSetNotFound = errors.New("stateful set is not found")
	// ErrEnvVarNotFound is returned when a container does not define the
	// environment variable to update.
	ErrEnvVarNotFound = errors.New("environment variable is not found")
)

// Cluster runs pod and workload queries against one EO namespace.
type Cluster struct {
	client    clientset.Interface
	namespace string
}

// NewCluster returns a Cluster bound to namespace.
func NewCluster(client clientset.Interface, namespace string) *Cluster {
	return &Cluster{client: client, namespace: namespace}
}

// Namespace returns the namespace of the cluster.
func (c *Cluster) Namespace() string {
	return c.namespace
}

// Client returns the underlying clientset.
func (c *Cluster) Client() clientset.Interface {
	return c.client
}

// podNameSuffix is the part controllers append to a workload name: a
// stateful set ordinal, a replica set hash plus pod id, or a daemon set or
// job pod id.
const podNameSuffix = `(\d+|[a-z0-9]{6,10}-[a-z0-9]{5}|[a-z0-9]{5})`

var podNameMatchers sync.Map

func podNameMatcher(d pods.Descriptor) *regexp.Regexp {
	if re, ok := podNameMatchers.Load(d.Name); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile("^" + regexp.QuoteMeta(d.Name) + "(" +
		regexp.QuoteMeta(patterns.HAStatefulSetMarker) + ")?-" + podNameSuffix + "$")
	podNameMatchers.Store(d.Name, re)
	return re
}

// MatchesDescriptor reports whether a pod name was generated for d, by its
// own workload or by the HA stateful set of d. Pods of sibling workloads
// whose names extend d.Name do not match.
func MatchesDescriptor(podName string, d pods.Descriptor) bool {
	return podNameMatcher(d).MatchString(podName)
}

// ListPods returns the pods of d, sorted by name.
func (c *Cluster) ListPods(ctx context.Context, d pods.Descriptor) ([]corev1.Pod, error) {
	list, err := c.client.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in namespace %q: %w", c.namespace, err)
	}
	var matched []corev1.Pod
	for _, p := range list.Items {
		if MatchesDescriptor(p.Name, d) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return matched, nil
}

// PodFullNames returns the generated names of the pods of d. It returns
// ErrPodNotFound when there are none.
func (c *Cluster) PodFullNames(ctx context.Context, d pods.Descriptor) ([]string, error) {
	list, err := c.ListPods(ctx, d)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s in namespace %q", ErrPodNotFound, d.Name, c.namespace)
	}
	names := make([]string, 0, len(list))
	for _, p := range list {
		names = append(names, p.Name)
	}
	return names, nil
}

// PodExists reports whether at least one pod of d exists.
func (c *Cluster) PodExists(ctx context.Context, d pods.Descriptor) (bool, error) {
	list, err := c.ListPods(ctx, d)
	if err != nil {
		return false, err
	}
	return len(list) > 0, nil
}

// GetPod returns the pod with the given generated name.
func (c *Cluster) GetPod(ctx context.Context, name string) (*corev1.Pod, error) {
	pod, err := c.client.CoreV1().Pods(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s in namespace %q", ErrPodNotFound, name, c.namespace)
	}
	return pod, err
}

// IsPodRunning reports whether some pod of d is running with all containers
// ready.
func (c *Cluster) IsPodRunning(ctx context.Context, d pods.Descriptor) (bool, error) {
	list, err := c.ListPods(ctx, d)
	if err != nil {
		return false, err
	}
	for i := range list {
		if list[i].Status.Phase == corev1.PodRunning && len(NotReadyContainers(&list[i])) == 0 {
			return true, nil
		}
	}
	return false, nil
}

// IsTerminated reports whether every pod of d is terminating or finished.
// It is false when d has no pods.
func (c *Cluster) IsTerminated(ctx context.Context, d pods.Descriptor) (bool, error) {
	list, err := c.ListPods(ctx, d)
	if err != nil {
		return false, err
	}
	if len(list) == 0 {
		return false, nil
	}
	for i := range list {
		if !IsPodTerminated(&list[i]) {
			return false, nil
		}
	}
	return true, nil
}

// IsPodTerminated reports whether pod is being deleted or has finished.
func IsPodTerminated(pod *corev1.Pod) bool {
	if pod.DeletionTimestamp != nil {
		return true
	}
	return pod.Status.Phase == corev1.PodSucceeded || pod.Status.Phase == corev1.PodFailed
}

// NotReadyContainers returns the statuses of the containers of pod that are
// not ready.
func NotReadyContainers(pod *corev1.Pod) []corev1.ContainerStatus {
	var notReady []corev1.ContainerStatus
	for _, cs := range pod.Status.ContainerStatuses {
		if !cs.Ready {
			notReady = append(notReady, cs)
		}
	}
	return notReady
}

// IsPodFailed reports whether pod is neither running healthy nor completed.
func IsPodFailed(pod *corev1.Pod) bool {
	switch pod.Status.Phase {
	case corev1.PodSucceeded:
		return false
	case corev1.PodRunning:
		return len(NotReadyContainers(pod)) > 0
	}
	return true
}

// FailedPods returns the failed pods of the namespace, sorted by name. Pods
// being deleted are skipped when excludeTerminated is set.
func (c *Cluster) FailedPods(ctx context.Context, excludeTerminated bool) ([]corev1.Pod, error) {
	list, err := c.client.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in namespace %q: %w", c.namespace, err)
	}
	var failed []corev1.Pod
	for i := range list.Items {
		p := &list.Items[i]
		if excludeTerminated && p.DeletionTimestamp != nil {
			continue
		}
		if IsPodFailed(p) {
			failed = append(failed, *p)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Name < failed[j].Name })
	return failed, nil
}

// StatefulSetName resolves the name of the stateful set of d. Installations
// may suffix the name, so the first stateful set starting with d.StatefulSet
// is returned.
func (c *Cluster) StatefulSetName(ctx context.Context, d pods.Descriptor) (string, error) {
	if d.StatefulSet == "" {
		return "", fmt.Errorf("%w: %s is not a stateful set pod", ErrStatefulSetNotFound, d.Name)
	}
	list, err := c.client.AppsV1().StatefulSets(c.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to list stateful sets in namespace %q: %w", c.namespace, err)
	}
	var names []string
	for _, sts := range list.Items {
		if strings.HasPrefix(sts.Name, d.StatefulSet) {
			names = append(names, sts.Name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: %s in namespace %q", ErrStatefulSetNotFound, d.StatefulSet, c.namespace)
	}
	sort.Strings(names)
	return names[0], nil
}

// ScaleDeployment sets the replica count of a deployment.
func (c *Cluster) ScaleDeployment(ctx context.Context, name string, replicas int32) error {
	log := logger.GetLogger(ctx)
	log.Infof("Scaling deployment %s/%s to %d replicas", c.namespace, name, replicas)
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		d, err := c.client.AppsV1().Deployments(c.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		d.Spec.Replicas = ptr.To(replicas)
		_, err = c.client.AppsV1().Deployments(c.namespace).Update(ctx, d, metav1.UpdateOptions{})
		return err
	})
}

// ScaleStatefulSet sets the replica count of a stateful set.
func (c *Cluster) ScaleStatefulSet(ctx context.Context, name string, replicas int32) error {
	log := logger.GetLogger(ctx)
	log.Infof("Scaling stateful set %s/%s to %d replicas", c.namespace, name, replicas)
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		sts, err := c.client.AppsV1().StatefulSets(c.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		sts.Spec.Replicas = ptr.To(replicas)
		_, err = c.client.AppsV1().StatefulSets(c.namespace).Update(ctx, sts, metav1.UpdateOptions{})
		return err
	})
}

// DeletePods deletes every pod of d and returns their names.
func (c *Cluster) DeletePods(ctx context.Context, d pods.Descriptor) ([]string, error) {
	log := logger.GetLogger(ctx)
	names, err := c.PodFullNames(ctx, d)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		log.Infof("Deleting pod %s/%s", c.namespace, name)
		err := c.client.CoreV1().Pods(c.namespace).Delete(ctx, name, metav1.DeleteOptions{})
		if err != nil && !apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("failed to delete pod %s: %w", name, err)
		}
	}
	return names, nil
}

// ConfigMapData returns the data of a config map.
func (c *Cluster) ConfigMapData(ctx context.Context, name string) (map[string]string, error) {
	cm, err := c.client.CoreV1().ConfigMaps(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	return cm.Data, nil
}

// UpdateDeploymentEnv sets an existing environment variable of a deployment
// container with a merge patch. container selects the first container when
// empty. It reports whether the deployment changed.
func (c *Cluster) UpdateDeploymentEnv(ctx context.Context, deployment, container, name, value string) (bool, error) {
	log := logger.GetLogger(ctx)
	d, err := c.client.AppsV1().Deployments(c.namespace).Get(ctx, deployment, metav1.GetOptions{})
	if err != nil {
		return false, err
	}
	original, err := json.Marshal(d)
	if err != nil {
		return false, err
	}
	modified := d.DeepCopy()
	idx := -1
	for i, ctr := range modified.Spec.Template.Spec.Containers {
		if container == "" || ctr.Name == container {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, fmt.Errorf("container %q is not found in deployment %s", container, deployment)
	}
	ctr := &modified.Spec.Template.Spec.Containers[idx]
	found := false
	for i := range ctr.Env {
		if ctr.Env[i].Name == name {
			if ctr.Env[i].Value == value {
				log.Infof("Env %s of deployment %s already set to %q", name, deployment, value)
				return false, nil
			}
			ctr.Env[i].Value = value
			found = true
		}
	}
	if !found {
		return false, fmt.Errorf("%w: %s in container %s of deployment %s", ErrEnvVarNotFound, name, ctr.Name, deployment)
	}
	updated, err := json.Marshal(modified)
	if err != nil {
		return false, err
	}
	patch, err := jsonpatch.CreateMergePatch(original, updated)
	if err != nil {
		return false, fmt.Errorf("failed to create merge patch for deployment %s: %w", deployment, err)
	}
	log.Debugf("Patching deployment %s with %s", deployment, string(patch))
	_, err = c.client.AppsV1().Deployments(c.namespace).Patch(ctx, deployment, types.MergePatchType, patch,
		metav1.PatchOptions{})
	if err != nil {
		return false, err
	}
	return true, nil
}
