package domain

// Configuration is the payload persisted by the platform's
// saveConfiguration call.
type Configuration struct {
	ObjectName       string        `json:"objectName"`
	OperationType    Operation     `json:"operationType"`
	FileName         string        `json:"fileName"`
	Mapping          []ConfigEntry `json:"mapping"`
	UniqueKeyColumns []string      `json:"uniqueKeyColumns,omitempty"`
}

// ConfigEntry is the wire form of a MappingEntry. List-valued attributes
// are serialized as comma-joined strings.
type ConfigEntry struct {
	CSVFieldName         string `json:"csvFieldName"`
	SelectedField        string `json:"selectedField"`
	IsLookup             bool   `json:"isLookup"`
	LookupObject         string `json:"lookupObject"`
	LookupObjectName     string `json:"lookupObjectName"`
	WhereClause          string `json:"whereClause"`
	SelectedLookupFields string `json:"selectedLookupFields"`
	ExtraCSVField        string `json:"extraCsvField"`
	KeyField             string `json:"keyField"`
	IsComposite          bool   `json:"isComposite"`
	IsUniqueKey          bool   `json:"isUniqueKey"`
	FileName             string `json:"fileName"`
}
