package provider

// ValidationError is input rejected before anything is sent to the backend.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return "invalid " + e.Field + ": " + e.Message
}
