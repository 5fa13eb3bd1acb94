package export

import "errors"

var (
	ErrNoObject            = errors.New("select an object to export")
	ErrNoFields            = errors.New("select at least one field to export")
	ErrNoLookupField       = errors.New("select a lookup field")
	ErrNoIdentifierFields  = errors.New("select at least one unique identifier field")
	ErrDuplicateIdentifier = errors.New("a unique identifier mapping already exists for this lookup field")
	ErrExportFailed        = errors.New("export failed")
)
