package models

import "strings"

// ValidationError lists the required fields that are still missing, in
// form order.
type ValidationError struct {
	Missing []string `json:"missing"`
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}
