package model

// ValidationResult reports authoring-time problems with a rule
// definition as human-readable strings. It is advisory tooling for rule
// editors; live evaluation never consults it.
type ValidationResult struct {
	Errors []string `json:"errors"`
	Valid  bool     `json:"valid"`
}

// AddError appends one problem and marks the result invalid.
func (r *ValidationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// NewValidationResult returns a result that is valid until an error is
// added.
func NewValidationResult() ValidationResult {
	return ValidationResult{Valid: true}
}
