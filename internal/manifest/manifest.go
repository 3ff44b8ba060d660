// Package manifest parses the human-maintained solutions manifest.
//
// The manifest maps a solution id (its directory name under solutions/) to
// the metadata shown on the homepage. It is stored as YAML (solutions.yaml)
// or TOML (solutions.toml); the format is picked from the file extension.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies the on-disk encoding of a manifest.
type Format string

const (
	// FormatYAML is the default manifest encoding.
	FormatYAML Format = "yaml"
	// FormatTOML is the alternative manifest encoding.
	FormatTOML Format = "toml"
)

// Entry is one declared solution.
type Entry struct {
	Title         string   `yaml:"title" toml:"title" json:"title" jsonschema:"description=Display title of the solution"`
	Description   string   `yaml:"description" toml:"description" json:"description" jsonschema:"description=One paragraph summary shown on the card"`
	Stacks        []string `yaml:"stacks" toml:"stacks" json:"stacks,omitempty" jsonschema:"description=Technology tags in display order"`
	PreviewImage  string   `yaml:"previewImage" toml:"previewImage" json:"previewImage,omitempty" jsonschema:"description=Preview image; relative paths resolve inside the solution"`
	ChallengeLink string   `yaml:"challengeLink" toml:"challengeLink" json:"challengeLink,omitempty" jsonschema:"description=Challenge page,format=uri"`
	SolutionLink  string   `yaml:"solutionLink" toml:"solutionLink" json:"solutionLink,omitempty" jsonschema:"description=Hosted solution write-up,format=uri"`
	RepoLink      string   `yaml:"repoLink" toml:"repoLink" json:"repoLink,omitempty" jsonschema:"description=Source repository; setting it allows an entry without a local directory,format=uri"`
	LiveLink      string   `yaml:"liveLink" toml:"liveLink" json:"liveLink,omitempty" jsonschema:"description=Live deployment,format=uri"`
}

// Manifest is a parsed manifest file. It is never mutated after parsing;
// reloads produce a new value.
type Manifest struct {
	// Entries maps the solution id to its declaration.
	Entries map[string]Entry
	// Order lists ids in file order (YAML) or sorted (TOML).
	Order []string
}

// Len returns the number of declared solutions.
func (m *Manifest) Len() int {
	return len(m.Order)
}

// Get returns the entry for id.
func (m *Manifest) Get(id string) (Entry, bool) {
	e, ok := m.Entries[id]
	return e, ok
}

// FormatFromPath returns the manifest format implied by the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported manifest extension %q", filepath.Ext(path))
	}
}

// Parse reads and parses a manifest file.
func Parse(path string) (*Manifest, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from the site configuration.
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseBytes(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseBytes parses a manifest from bytes in the given format.
func ParseBytes(data []byte, format Format) (*Manifest, error) {
	var m *Manifest
	var err error
	switch format {
	case FormatYAML:
		m, err = parseYAML(data)
	case FormatTOML:
		m, err = parseTOML(data)
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return m, nil
}

// Validate checks that every id can name a directory.
func (m *Manifest) Validate() error {
	for _, id := range m.Order {
		if err := ValidateID(id); err != nil {
			return err
		}
	}
	return nil
}

// ValidateID reports whether id is usable as a solution directory name and
// URL path segment.
func ValidateID(id string) error {
	switch {
	case id == "":
		return errEmptyID
	case id == "." || id == "..":
		return fmt.Errorf("solution id %q is reserved", id)
	case strings.ContainsAny(id, "/\\?#"):
		return fmt.Errorf("solution id %q contains a path or URL separator", id)
	case strings.HasPrefix(id, "@"):
		return fmt.Errorf("solution id %q must not start with '@'", id)
	}
	return nil
}

var errEmptyID = errors.New("solution id is empty")

// parseYAML decodes the top-level mapping node by node to keep file order.
func parseYAML(data []byte) (*Manifest, error) {
	m := &Manifest{Entries: map[string]Entry{}}
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return m, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return m, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: top level must be a mapping of solution id to entry", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		id := key.Value
		if _, dup := m.Entries[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate solution id %q", key.Line, id)
		}
		var e Entry
		if !(val.Kind == yaml.ScalarNode && val.Tag == "!!null") {
			if err := val.Decode(&e); err != nil {
				return nil, fmt.Errorf("solution %q: %w", id, err)
			}
		}
		m.Entries[id] = e
		m.Order = append(m.Order, id)
	}
	return m, nil
}

func parseTOML(data []byte) (*Manifest, error) {
	entries := map[string]Entry{}
	d := toml.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	if err := d.Decode(&entries); err != nil {
		return nil, err
	}
	m := &Manifest{Entries: entries, Order: make([]string, 0, len(entries))}
	for id := range entries {
		m.Order = append(m.Order, id)
	}
	slices.Sort(m.Order)
	return m, nil
}
