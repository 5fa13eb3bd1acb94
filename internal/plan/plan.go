// Package plan describes a complete import mapping in YAML and replays it
// against a wizard session, the same way a user would click through it.
//
//	object: Account
//	operation: Update
//	fields:
//	  - column: Owner
//	    field: OwnerId
//	    lookup_fields: [Email]
//	    extra_csv_fields: {Email: OwnerEmail}
//	  - column: Notes
//	    skip: true
//	unique_key:
//	  columns: [Id]
package plan

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/service/mapping"
)

var (
	ErrNoObject       = errors.New("plan: object is required")
	ErrNoColumn       = errors.New("plan: field mapping without column")
	ErrCompositeWidth = errors.New("plan: a composite needs at least two columns")
)

// Plan is a full mapping of one CSV file.
type Plan struct {
	Object     string      `yaml:"object"`
	Operation  string      `yaml:"operation"`
	Fields     []Field     `yaml:"fields"`
	Additional []Field     `yaml:"additional"`
	Composites []Composite `yaml:"composites"`
	UniqueKey  *UniqueKey  `yaml:"unique_key"`
}

// Field maps one CSV column. KeyField addresses a repeated header
// ("Name#2"); it defaults to Column.
type Field struct {
	Column         string            `yaml:"column"`
	KeyField       string            `yaml:"key_field"`
	Field          string            `yaml:"field"`
	Skip           bool              `yaml:"skip"`
	LookupFields   []string          `yaml:"lookup_fields"`
	ExtraCSVFields map[string]string `yaml:"extra_csv_fields"`
	Where          string            `yaml:"where"`
}

// Composite combines columns into one lookup key. Parts picks the related
// field matched by each column.
type Composite struct {
	Columns []string          `yaml:"columns"`
	Field   string            `yaml:"field"`
	Parts   map[string]string `yaml:"parts"`
	Where   string            `yaml:"where"`
}

// UniqueKey is the key used to match existing records.
type UniqueKey struct {
	Mode    mapping.UniqueKeyMode `yaml:"mode"`
	Columns []string              `yaml:"columns"`
}

// Load reads a plan from a YAML file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML plan.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the plan's shape. Whether columns and fields exist is
// only known once it is applied to a file.
func (p *Plan) Validate() error {
	if p.Object == "" {
		return ErrNoObject
	}
	if _, err := domain.ParseOperation(p.Operation); err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	for _, f := range append(append([]Field(nil), p.Fields...), p.Additional...) {
		if f.Column == "" && f.KeyField == "" {
			return ErrNoColumn
		}
	}
	for _, c := range p.Composites {
		if len(c.Columns) < 2 {
			return ErrCompositeWidth
		}
	}
	return nil
}

func (f Field) key() string {
	if f.KeyField != "" {
		return f.KeyField
	}
	return f.Column
}
