package domain

// DefaultPrimaryKeyField is the API name of the record identifier field on
// every target object. Mapping a column to it is treated as a lookup onto
// the selected object itself.
const DefaultPrimaryKeyField = "Id"

// TargetObject is a business object the platform can import into.
type TargetObject struct {
	Label   string `json:"label"`
	APIName string `json:"api_name"`
}

// Field describes one field of a target object.
type Field struct {
	Label    string `json:"label"`
	APIName  string `json:"api_name"`
	IsLookup bool   `json:"is_lookup"`
}

// LookupFields is the platform's answer to "which fields does the object
// behind this lookup expose". LookupObjectName is the API name of that
// related object.
type LookupFields struct {
	Fields           []Field `json:"fields"`
	LookupObjectName string  `json:"lookup_object_name"`
}

// FieldNames returns the API names of fields, in order.
func FieldNames(fields []Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.APIName)
	}
	return out
}
