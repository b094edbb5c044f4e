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

package availability

import (
	"sort"

	"github.com/consultant-1379/eo-gr-testing/pkg/registry"
)

// normalize returns a copy of images sorted by name with sorted tags. Nil
// and empty tag lists compare equal.
func normalize(images []registry.Image) []registry.Image {
	out := make([]registry.Image, 0, len(images))
	for _, img := range images {
		tags := append([]string{}, img.Tags...)
		sort.Strings(tags)
		out = append(out, registry.Image{Name: img.Name, Tags: tags})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
