package pipeline

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Load reads and validates a pipeline file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load pipeline: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load pipeline %s: %w", path, err)
	}
	return spec, nil
}

// Parse validates pipeline YAML against the embedded CUE schema and decodes
// it into a Spec. Schema validation runs first so structural errors surface
// with CUE's field-level messages rather than as decode failures.
func Parse(data []byte) (*Spec, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse pipeline yaml: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("pipeline schema: %w", err)
	}

	var f struct {
		Pipeline Spec `yaml:"pipeline"`
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode pipeline: %w", err)
	}
	spec := f.Pipeline

	seen := make(map[string]struct{}, len(spec.Steps))
	for i := range spec.Steps {
		step := &spec.Steps[i]
		if _, dup := seen[step.Name]; dup {
			return nil, fmt.Errorf("duplicate step name %q", step.Name)
		}
		seen[step.Name] = struct{}{}
		if step.OnFailure == "" {
			step.OnFailure = PolicyHalt
		}
	}
	return &spec, nil
}

// validateSchema unifies the raw document with the #Pipeline definition.
// The definition is closed, so unknown fields fail here.
func validateSchema(raw map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Pipeline"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup #Pipeline: %w", err)
	}

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}
