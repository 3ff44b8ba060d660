// Generates the JSON Schema of the manifest for editor validation.

package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// File is the shape of a manifest document: solution id to entry.
type File map[string]Entry

// SchemaID is the $id of the generated schema.
const SchemaID = "https://avisek.github.io/frontend-mentor-solutions/solutions.schema.json"

// Schema returns the JSON Schema describing a manifest document.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(File{})
	s.ID = SchemaID
	s.Title = "Solutions manifest"
	s.Description = "Solution id (directory name under solutions/) to homepage metadata."
	return s
}

// SchemaJSON returns the indented JSON encoding of Schema.
func SchemaJSON() ([]byte, error) {
	b, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest schema: %w", err)
	}
	return append(b, '\n'), nil
}
