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

// Package config merges the layered clusterq configuration documents into one
// effective configuration and decodes it into typed settings.
//
// Documents are YAML (JSON documents are accepted as-is). Layers are merged in
// a fixed order; for most keys the later layer wins, while the keys listed in
// sequenceKeys and mappingKeys accumulate across layers.
package config

import (
	iofs "io/fs"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Error kinds reported while loading configuration.
var (
	ErrConfigNotFound      = errors.New("configuration not found")
	ErrMalformedConfig     = errors.New("malformed configuration")
	ErrMissingKey          = errors.New("missing configuration key")
	ErrInvalidParameterKey = errors.New("invalid parameter key")
	ErrDuplicateLayer      = errors.New("configuration layer merged twice")
)

// Layer is one parsed configuration document.
type Layer struct {
	// Source identifies the document, usually its path.
	Source string
	root   *yaml.Node
}

// ParseLayer parses data as a configuration document. An empty document is
// an empty layer; any other top-level value than a mapping is malformed.
func ParseLayer(source string, data []byte) (*Layer, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(ErrMalformedConfig, "%s: %v", source, err)
	}

	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root = doc.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, errors.Wrapf(ErrMalformedConfig, "%s: top level must be a mapping", source)
	}
	return &Layer{Source: source, root: root}, nil
}

// LoadLayer reads and parses the document at path.
func LoadLayer(fs afero.Fs, path string) (*Layer, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, errors.Wrapf(ErrConfigNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to read configuration %s", path)
	}
	return ParseLayer(path, data)
}

// Keys returns the top-level keys in document order.
func (l *Layer) Keys() []string {
	keys := make([]string, 0, len(l.root.Content)/2)
	for i := 0; i+1 < len(l.root.Content); i += 2 {
		keys = append(keys, l.root.Content[i].Value)
	}
	return keys
}
