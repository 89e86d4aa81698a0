package snapshot

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// LoadDocument reads a snapshot document from a JSON or YAML file,
// picking the decoder by extension. Numbers are decoded as json.Number
// on both paths so their literal text survives into the model.
func LoadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var doc map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse snapshot %s: %w", filepath.Base(path), err)
		}
	case ".yaml", ".yml":
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("parse snapshot %s: %w", filepath.Base(path), err)
		}
		if root.Kind == 0 { // empty document
			return nil, nil
		}
		v, err := yamlValue(&root)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot %s: %w", filepath.Base(path), err)
		}
		if v == nil {
			return nil, nil
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parse snapshot %s: document is not a mapping", filepath.Base(path))
		}
		doc = m
	default:
		return nil, fmt.Errorf("snapshot %s: unsupported extension %q (want .json, .yaml or .yml)", filepath.Base(path), ext)
	}
	return doc, nil
}

// yamlValue converts a decoded yaml.Node into the generic document
// shape. Numeric scalars keep their source text as json.Number; a plain
// yaml.Unmarshal into any would round them through float64 and turn
// "32.0" into "32".
func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0])
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, err
			}
			v, err := yamlValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[key] = v
		}
		return m, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!int", "!!float":
			return json.Number(n.Value), nil
		case "!!null":
			return nil, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, err
			}
			return b, nil
		default:
			return n.Value, nil
		}
	default:
		return nil, fmt.Errorf("unsupported yaml node kind %d", n.Kind)
	}
}

// Load reads and builds a Snapshot from a JSON or YAML file.
func Load(path string) (*Snapshot, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	s, err := Build(doc)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// SaveDocument writes a snapshot document to path as JSON or YAML,
// picking the encoder by extension. Parent directories are created.
func SaveDocument(path string, doc map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(doc, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(doc)
	default:
		return fmt.Errorf("snapshot %s: unsupported extension %q (want .json, .yaml or .yml)", filepath.Base(path), ext)
	}
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
