package domain

import "fmt"

// ValidationError required context missing before a write. It is a caller bug,
// never a transient condition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// RequireContext returns a ValidationError when team or user is empty.
func RequireContext(teamID, userID string) error {
	if teamID == "" {
		return &ValidationError{Field: "team_id", Message: "is required"}
	}
	if userID == "" {
		return &ValidationError{Field: "user_id", Message: "is required"}
	}
	return nil
}
