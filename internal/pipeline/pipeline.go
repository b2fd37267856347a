// Package pipeline runs batch workbench sessions described in YAML: an
// ordered list of stage steps executed one after the other through the
// engine, with the same gate and error semantics as the interactive hosts.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Pipeline is a parsed pipeline file.
type Pipeline struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps" validate:"min=1,dive"`

	// dir anchors relative paths in steps. Empty means the working directory.
	dir string
}

// Step is one stage invocation. Only the fields of its stage are read;
// unset numeric parameters fall back to the configured defaults.
type Step struct {
	Stage string `yaml:"stage" validate:"required,oneof=standardize layout extract prune merge translate classify select explore export"`
	Name  string `yaml:"name"`

	// standardize
	Dictionary  string `yaml:"dictionary"`
	Standardize *bool  `yaml:"standardize"`

	// extract
	Source     string   `yaml:"source" validate:"omitempty,oneof=file http duckdb"`
	Inputs     []string `yaml:"inputs"`
	Query      string   `yaml:"query"`
	Depth      *int     `yaml:"depth" validate:"omitempty,gte=0,lte=5"`
	Keywords   []string `yaml:"keywords"`
	Separator  string   `yaml:"separator"`
	Encoding   string   `yaml:"encoding"`
	Extensions []string `yaml:"extensions"`
	OutputDir  string   `yaml:"output_dir"`

	// prune, merge
	NaNThreshold        *float64 `yaml:"nan_threshold" validate:"omitempty,gte=0,lte=1"`
	SampleFraction      *float64 `yaml:"sample_fraction" validate:"omitempty,gte=0,lte=1"`
	SimilarityThreshold *float64 `yaml:"similarity_threshold" validate:"omitempty,gte=0,lte=1"`

	// translate, classify
	Fields   []string `yaml:"fields"`
	Language string   `yaml:"language"`
	Model    string   `yaml:"model"`

	// select
	Categories []string `yaml:"categories"`
	KeyColumn  string   `yaml:"key_column"`
	KeyValues  []string `yaml:"key_values"`

	// explore
	Snippet string `yaml:"snippet"`
	File    string `yaml:"file"`
	Adopt   bool   `yaml:"adopt"`

	// export
	Target    string `yaml:"target" validate:"omitempty,oneof=datasets dictionary result"`
	Dir       string `yaml:"dir"`
	Archive   bool   `yaml:"archive"`
	Delimiter string `yaml:"delimiter"`
}

// Label names the step in reports.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Stage
}

// ParseError reports a pipeline file that could not be decoded or failed
// validation.
type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return "invalid pipeline: " + e.Message
	}
	return fmt.Sprintf("invalid pipeline %s: %s", e.Path, e.Message)
}

var validate = validator.New()

// Load reads and validates a pipeline file. Relative paths in its steps
// resolve against the file's directory.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided CLI input
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	p.dir = filepath.Dir(path)
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Parse decodes and validates pipeline YAML. Unknown keys are rejected.
func Parse(data []byte) (*Pipeline, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Pipeline
	if err := dec.Decode(&p); err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	if err := validate.Struct(&p); err != nil {
		return nil, &ParseError{Message: describe(err)}
	}
	for i, s := range p.Steps {
		if err := s.check(); err != nil {
			return nil, &ParseError{Message: fmt.Sprintf("step %d (%s): %v", i+1, s.Label(), err)}
		}
	}
	return &p, nil
}

// check covers the per-stage rules struct tags cannot express.
func (s Step) check() error {
	switch s.Stage {
	case "standardize":
		if s.Dictionary == "" {
			return errors.New("dictionary is required")
		}
	case "extract":
		if len(s.Inputs) == 0 && s.Query == "" {
			return errors.New("inputs or query is required")
		}
	case "explore":
		if (s.Snippet == "") == (s.File == "") {
			return errors.New("exactly one of snippet or file is required")
		}
	case "export":
		if s.Target == "" || s.Dir == "" {
			return errors.New("target and dir are required")
		}
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Pipeline.")
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s failed %s", field, fe.Tag())
		}
	}
	return strings.Join(msgs, "; ")
}

// resolve anchors a relative local path at the pipeline directory.
func (p *Pipeline) resolve(path string) string {
	if path == "" || p.dir == "" || filepath.IsAbs(path) || strings.Contains(path, "://") {
		return path
	}
	return filepath.Join(p.dir, path)
}
