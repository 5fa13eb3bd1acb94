// Package export generates CSV exports of platform records.
//
// An export names an object, the fields to read, and optional unique
// identifier fields. Identifier mappings tie a lookup field to the fields of
// the related record that identify it, so the exported file can be edited and
// re-imported through the wizard with lookups matched by those fields.
package export
