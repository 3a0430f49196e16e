package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"
)

// Load reads a plan from path. Files ending in .cue and directories are
// evaluated as CUE; everything else is parsed as YAML, which also accepts
// JSON.
func Load(path string) (*Plan, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	if info.IsDir() {
		return LoadCUEDir(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return ParseCUE(data, path)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON plan. Unknown keys are rejected so that a
// misspelled step does not silently do nothing.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidPlan)
		}
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseCUE evaluates a single CUE file and decodes the result as a plan.
// filename is used in error positions only.
func ParseCUE(data []byte, filename string) (*Plan, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	return fromCUE(v)
}

// LoadCUEDir evaluates the CUE package in dir as a plan.
func LoadCUEDir(dir string) (*Plan, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: no CUE instances in %s", ErrInvalidPlan, dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}
	return fromCUE(cuecontext.New().BuildInstance(inst))
}

func fromCUE(v cue.Value) (*Plan, error) {
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("exporting CUE value: %w", err)
	}
	return Parse(data)
}
