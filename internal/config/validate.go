package config

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaFS embed.FS

// validateManifest unifies the raw decoded manifest with the embedded CUE
// schema. Unknown fields and wrong types fail here, before any source file
// is touched.
func validateManifest(raw interface{}) error {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return fmt.Errorf("loading embedded schema: %w", err)
	}
	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return fmt.Errorf("compiling schema: %w", schema.Err())
	}

	jsonBytes, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshaling manifest to JSON: %w", err)
	}
	dataValue := ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling manifest as CUE: %w", dataValue.Err())
	}

	manifestDef := schema.LookupPath(cue.ParsePath("#Manifest"))
	if manifestDef.Err() != nil {
		return fmt.Errorf("looking up #Manifest definition: %w", manifestDef.Err())
	}

	unified := manifestDef.Unify(dataValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
