package model

// FieldChange records the before and after values of one mutated
// transaction field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// ChangeSet maps logical field names ("category", "vendor", "notes",
// "account", "type", "reference", "tags") to the mutation one
// ApplyRules call performed. Only fields actually changed appear.
type ChangeSet map[string]FieldChange

// Changed reports whether the named field was mutated.
func (c ChangeSet) Changed(field string) bool {
	_, ok := c[field]
	return ok
}
