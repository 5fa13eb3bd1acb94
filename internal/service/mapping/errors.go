package mapping

import "errors"

// Validation errors. Apply returns the input state unchanged alongside any
// of these.
var (
	ErrUnknownKeyField        = errors.New("no mapping entry with that key field")
	ErrUnknownColumn          = errors.New("unknown CSV column")
	ErrUnknownField           = errors.New("field is not available for this lookup")
	ErrNoObject               = errors.New("select an object before continuing")
	ErrNoOperation            = errors.New("select an operation before continuing")
	ErrNothingMapped          = errors.New("map at least one CSV column")
	ErrSectionPending         = errors.New("finish the current composite section first")
	ErrSectionNotFound        = errors.New("composite section not found")
	ErrSectionMapped          = errors.New("composite section is already mapped")
	ErrTooFewColumns          = errors.New("select more than one column to create a composite key")
	ErrNotComposite           = errors.New("mapping entry is not a composite key")
	ErrNotLookup              = errors.New("mapping entry is not a lookup")
	ErrLookupNotResolved      = errors.New("lookup fields are still loading")
	ErrLookupUnresolved       = errors.New("lookup field has no related object, select it again")
	ErrUniqueKeyNotApplicable = errors.New("unique keys apply only to Update and Upsert")
	ErrInvalidUniqueKeyMode   = errors.New("unique key mode must be single or multi")
	ErrSingleKeyColumn        = errors.New("select exactly one column for a single unique key")
	ErrNoUniqueKeyColumns     = errors.New("select at least one column for the unique key")
	ErrUniqueKeyRequired      = errors.New("Update requires a unique key mapping")
)
