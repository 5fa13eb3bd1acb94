// Package mapping holds the column-to-field mapping of one import.
//
// All mutations go through Apply, a pure reducer over State driven by a
// closed set of actions. Per-column Cells own the field-selection state
// machine of a single row and talk to the reducer only through Change
// messages wrapped in a FieldChanged action. The reducer also owns the
// monotonic id generator used for composite keys, sections and additional
// mappings.
//
// Nothing in this package performs I/O. Lookup fetches are returned to the
// caller as LookupRequest values and their results handed back to the cell.
package mapping
