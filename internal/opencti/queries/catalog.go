// Package queries holds the GraphQL documents the tool surface sends to
// OpenCTI. Collection searches are declared in collections.yaml; single
// entity documents live under graphql/ and are addressed by file name.
package queries

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed collections.yaml
var collectionsYAML []byte

//go:embed graphql/*.graphql
var documentFiles embed.FS

// Collection is one keyword-searchable connection, e.g. indicators.
type Collection struct {
	Name        string `yaml:"name"`
	ResultKey   string `yaml:"result_key"`
	Description string `yaml:"description"`
	Query       string `yaml:"query"`
}

// ToolName is the name the collection is exposed under.
func (c Collection) ToolName() string {
	return "search_" + c.Name
}

type catalogFile struct {
	Collections []Collection `yaml:"collections"`
}

var (
	loadOnce    sync.Once
	loadErr     error
	collections []Collection
	documents   map[string]string
)

func load() error {
	loadOnce.Do(func() {
		var file catalogFile
		if err := yaml.Unmarshal(collectionsYAML, &file); err != nil {
			loadErr = fmt.Errorf("parse collections.yaml: %w", err)
			return
		}
		seen := make(map[string]bool, len(file.Collections))
		for _, c := range file.Collections {
			if c.Name == "" || c.ResultKey == "" || strings.TrimSpace(c.Query) == "" {
				loadErr = fmt.Errorf("collection %q: name, result_key and query are required", c.Name)
				return
			}
			if seen[c.Name] {
				loadErr = fmt.Errorf("collection %q declared twice", c.Name)
				return
			}
			seen[c.Name] = true
		}
		collections = file.Collections

		entries, err := documentFiles.ReadDir("graphql")
		if err != nil {
			loadErr = fmt.Errorf("read embedded documents: %w", err)
			return
		}
		documents = make(map[string]string, len(entries))
		for _, entry := range entries {
			raw, err := documentFiles.ReadFile(path.Join("graphql", entry.Name()))
			if err != nil {
				loadErr = fmt.Errorf("read %s: %w", entry.Name(), err)
				return
			}
			documents[strings.TrimSuffix(entry.Name(), ".graphql")] = string(raw)
		}
	})
	return loadErr
}

// Collections returns the collection searches in declaration order.
func Collections() ([]Collection, error) {
	if err := load(); err != nil {
		return nil, err
	}
	return append([]Collection(nil), collections...), nil
}

// Document names.
const (
	CoreObject           = "core_object"
	CoreRelationship     = "core_relationship"
	CyberObservable      = "cyber_observable"
	EntityRelationships  = "entity_relationships"
	EntityIndicators     = "entity_indicators"
	EntityAttackPatterns = "entity_attack_patterns"
	EntityObservables    = "entity_observables"
	EntityNotes          = "entity_notes"
	StixID               = "stix_id"
	Connectors           = "connectors"
	MalwareAnalysis      = "malware_analysis"
)

// Document returns the embedded GraphQL document called name.
func Document(name string) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	doc, ok := documents[name]
	if !ok {
		return "", fmt.Errorf("unknown query document %q", name)
	}
	return doc, nil
}

// MustDocument is Document for names known at compile time.
func MustDocument(name string) string {
	doc, err := Document(name)
	if err != nil {
		panic(err)
	}
	return doc
}

// DocumentNames lists every embedded document, sorted.
func DocumentNames() []string {
	if err := load(); err != nil {
		return nil
	}
	out := make([]string, 0, len(documents))
	for name := range documents {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
