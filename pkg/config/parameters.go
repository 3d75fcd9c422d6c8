// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"

	"clusterq/pkg/interp"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// ParameterPath is the location pattern of one parameter set after the
// naming context has been applied.
type ParameterPath struct {
	// Set is the parameter set name, e.g. "basis".
	Set string
	// Template still holds the parameter keys left to choose.
	Template *interp.Template
	// Keys lists those parameter keys in pattern order.
	Keys []string
}

// ResolveParameterPaths applies names to the path pattern of every declared
// parameter set. Keys left unresolved must be declared in parameterkeys.
func (s *Settings) ResolveParameterPaths(names interp.Context) ([]ParameterPath, error) {
	paths := make([]ParameterPath, 0, len(s.ParameterSets))
	for _, set := range s.ParameterSets {
		pattern, ok := s.ParameterPaths[set]
		if !ok {
			return nil, errors.Wrapf(ErrMissingKey, "parameterpaths.%s", set)
		}
		if pattern == "" {
			return nil, errors.Wrapf(ErrMalformedConfig, "the path to parameter set %q is empty", set)
		}
		tmpl, err := interp.Parse(pattern)
		if err != nil {
			return nil, fmt.Errorf("parameter set %q: %w", set, err)
		}
		applied := tmpl.Apply(names)
		keys := applied.Keys()
		for _, key := range keys {
			if !slices.Contains(s.ParameterKeys, key) {
				return nil, errors.Wrapf(ErrInvalidParameterKey, "%q in the path of parameter set %q", key, set)
			}
		}
		paths = append(paths, ParameterPath{Set: set, Template: applied, Keys: keys})
	}
	return paths, nil
}

// ParameterKeysInUse returns the union of keys over paths, in order.
func ParameterKeysInUse(paths []ParameterPath) []string {
	var keys []string
	for _, p := range paths {
		for _, k := range p.Keys {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	return keys
}
