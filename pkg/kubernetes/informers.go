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

package kubernetes

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/informers"
	clientset "k8s.io/client-go/kubernetes"
	corelisters "k8s.io/client-go/listers/core/v1"
	"k8s.io/client-go/tools/cache"

	"github.com/consultant-1379/eo-gr-testing/pkg/gr/pods"
)

func noResyncPeriodFunc() time.Duration {
	return 0
}

// PodInformer notifies subscribers about pod changes in one namespace.
type PodInformer struct {
	namespace       string
	informerFactory informers.SharedInformerFactory
	podInformer     cache.SharedIndexInformer
	podLister       corelisters.PodLister
}

// NewPodInformer creates a pod informer restricted to namespace.
func NewPodInformer(client clientset.Interface, namespace string) *PodInformer {
	factory := informers.NewSharedInformerFactoryWithOptions(client, noResyncPeriodFunc(),
		informers.WithNamespace(namespace))
	podInformer := factory.Core().V1().Pods()
	return &PodInformer{
		namespace:       namespace,
		informerFactory: factory,
		podInformer:     podInformer.Informer(),
		podLister:       podInformer.Lister(),
	}
}

// AddPodListener hooks up add, update, delete callbacks
func (pi *PodInformer) AddPodListener(add func(obj interface{}), update func(oldObj, newObj interface{}),
	remove func(obj interface{})) error {
	_, err := pi.podInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    add,
		UpdateFunc: update,
		DeleteFunc: remove,
	})
	return err
}

// AddDescriptorListener calls onAdd with every pod of d the informer sees
// appear, including the ones present at start.
func (pi *PodInformer) AddDescriptorListener(d pods.Descriptor, onAdd func(pod *corev1.Pod)) error {
	return pi.AddPodListener(func(obj interface{}) {
		if pod, ok := obj.(*corev1.Pod); ok && MatchesDescriptor(pod.Name, d) {
			onAdd(pod)
		}
	}, nil, nil)
}

// GetPodLister returns the pod lister of the informed namespace.
func (pi *PodInformer) GetPodLister() corelisters.PodNamespaceLister {
	return pi.podLister.Pods(pi.namespace)
}

// Listen starts the informer and waits for its cache to sync. The informer
// stops with ctx.
func (pi *PodInformer) Listen(ctx context.Context) error {
	pi.informerFactory.Start(ctx.Done())
	if !cache.WaitForCacheSync(ctx.Done(), pi.podInformer.HasSynced) {
		return fmt.Errorf("pod informer cache for namespace %q did not sync", pi.namespace)
	}
	return nil
}
