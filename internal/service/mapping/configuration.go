package mapping

import (
	"fmt"
	"strings"

	"github.com/ignite/crm-import/internal/domain"
)

// Validate checks that s can be submitted.
func Validate(s State) error {
	if s.ObjectName == "" {
		return ErrNoObject
	}
	if !s.Operation.Valid() {
		return ErrNoOperation
	}
	if s.Operation.RequiresUniqueKey() && !s.UniqueKey.Defined() {
		return ErrUniqueKeyRequired
	}
	mapped := false
	for _, e := range s.Entries {
		if !e.Mapped() {
			continue
		}
		if e.IsLookup && e.LookupObjectAPIName == "" {
			return fmt.Errorf("%w: %s", ErrLookupUnresolved, e.CSVFieldName)
		}
		mapped = true
	}
	if !mapped {
		return ErrNothingMapped
	}
	return nil
}

// BuildConfiguration derives the payload for the platform's
// saveConfiguration call. Unmapped entries are left out.
func BuildConfiguration(s State) (domain.Configuration, error) {
	if err := Validate(s); err != nil {
		return domain.Configuration{}, err
	}

	cfg := domain.Configuration{
		ObjectName:    s.ObjectName,
		OperationType: s.Operation,
		FileName:      s.FileName,
		Mapping:       make([]domain.ConfigEntry, 0, len(s.Entries)),
	}
	if s.Operation.AllowsUniqueKey() && s.UniqueKey.Defined() {
		cfg.UniqueKeyColumns = append([]string(nil), s.UniqueKey.Columns...)
	}

	for _, e := range s.Entries {
		if !e.Mapped() {
			continue
		}
		ce := domain.ConfigEntry{
			CSVFieldName:  e.CSVFieldName,
			SelectedField: e.SelectedField,
			IsLookup:      e.IsLookup,
			KeyField:      e.KeyField,
			IsComposite:   e.IsComposite,
			IsUniqueKey:   e.IsUniqueKey,
			FileName:      s.FileName,
		}
		if e.IsLookup {
			ce.LookupObject = e.LookupObjectAPIName
			ce.LookupObjectName = e.LookupObjectName
			ce.WhereClause = e.WhereClause
			ce.SelectedLookupFields = selectedLookupFields(e)
			ce.ExtraCSVField = strings.Join(e.ExtraCSVFields, ",")
		}
		cfg.Mapping = append(cfg.Mapping, ce)
	}
	return cfg, nil
}

// selectedLookupFields serializes the related fields of a lookup entry as
// a lower-cased comma list. Composite entries with per-column choices use
// those, in column order, skipping columns without a choice.
func selectedLookupFields(e domain.MappingEntry) string {
	var fields []string
	if e.IsComposite && len(e.PartLookupFields) > 0 {
		for _, col := range e.Columns() {
			if f := e.PartLookupFields[col]; f != "" {
				fields = append(fields, f)
			}
		}
	} else {
		fields = e.SelectedLookupFields
	}
	return strings.ToLower(strings.Join(fields, ","))
}
