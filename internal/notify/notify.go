// Package notify renders the user-visible messages shown after wizard
// actions. Messages are Liquid templates and can be overridden from
// configuration.
package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/osteele/liquid"
)

// Variant is the visual severity of a notification.
type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
	VariantInfo    Variant = "info"
)

// Message names.
const (
	UploadStarted   = "upload_started"
	UploadCompleted = "upload_completed"
	UploadFailed    = "upload_failed"
	ConfigSaved     = "config_saved"
	ConfigFailed    = "config_failed"
	ExportDone      = "export_done"
	ExportFailed    = "export_failed"
	ValidationError = "validation_error"
)

type definition struct {
	title    string
	variant  Variant
	template string
}

var defaults = map[string]definition{
	UploadStarted: {"Success", VariantSuccess,
		"The CSV Data has been read successfully, you will receive an Email notification once the Data is {{ verb }}."},
	UploadCompleted: {"Upload Complete", VariantSuccess,
		"{{ processed }} of {{ total }} records from {{ file_name }} were sent to be {{ verb }}."},
	UploadFailed: {"Upload Failed", VariantError,
		"{{ failed_batches }} of {{ batches }} batches from {{ file_name }} could not be sent{% if error %}: {{ error }}{% endif %}."},
	ConfigSaved:     {"Success", VariantSuccess, "CSV mapping created successfully!"},
	ConfigFailed:    {"Error", VariantError, "Failed to create CSV mapping."},
	ExportDone:      {"Success", VariantSuccess, "CSV has been exported!"},
	ExportFailed:    {"Error", VariantError, "Failed to export CSV."},
	ValidationError: {"Error", VariantError, "{{ error }}"},
}

// Notification is a rendered message.
type Notification struct {
	Title   string  `json:"title"`
	Message string  `json:"message"`
	Variant Variant `json:"variant"`
}

// Vars are the template bindings of a message.
type Vars map[string]interface{}

// Messages holds the parsed templates.
type Messages struct {
	defs      map[string]definition
	templates map[string]*liquid.Template
}

// New parses the default templates with overrides applied. Overrides for
// unknown names or with syntax errors are rejected.
func New(overrides map[string]string) (*Messages, error) {
	engine := liquid.NewEngine()
	engine.RegisterFilter("lower", strings.ToLower)

	m := &Messages{
		defs:      make(map[string]definition, len(defaults)),
		templates: make(map[string]*liquid.Template, len(defaults)),
	}
	for name, def := range defaults {
		m.defs[name] = def
	}
	for name, tpl := range overrides {
		def, ok := m.defs[name]
		if !ok {
			return nil, fmt.Errorf("notify: unknown message %q (known: %s)", name, strings.Join(Names(), ", "))
		}
		def.template = tpl
		m.defs[name] = def
	}

	for name, def := range m.defs {
		tpl, err := engine.ParseString(def.template)
		if err != nil {
			return nil, fmt.Errorf("notify: parsing %s: %w", name, err)
		}
		m.templates[name] = tpl
	}
	return m, nil
}

// Default returns the built-in messages.
func Default() *Messages {
	m, err := New(nil)
	if err != nil {
		panic(err)
	}
	return m
}

// Names lists the known message names.
func Names() []string {
	names := make([]string, 0, len(defaults))
	for n := range defaults {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Render renders the named message. A render failure falls back to the raw
// template text so the user still sees something.
func (m *Messages) Render(name string, vars Vars) Notification {
	def, ok := m.defs[name]
	if !ok {
		return Notification{Title: "Error", Message: name, Variant: VariantError}
	}
	n := Notification{Title: def.title, Variant: def.variant, Message: def.template}
	out, err := m.templates[name].RenderString(liquid.Bindings(vars))
	if err == nil {
		n.Message = out
	}
	return n
}

// Error renders err as a validation notification.
func (m *Messages) Error(err error) Notification {
	return m.Render(ValidationError, Vars{"error": err.Error()})
}
