package types

// Result is an itemized outcome report returned by registration.
// Either the error side or the success side is populated.
type Result struct {
	ErrorCount      int      `json:"errorCount"`
	ErrorMessages   []string `json:"errorMessages,omitempty"`
	SuccessCount    int      `json:"successCount"`
	SuccessMessages []string `json:"successMessages,omitempty"`
}

// AddError records a failure message.
func (r *Result) AddError(message string) {
	r.ErrorCount++
	r.ErrorMessages = append(r.ErrorMessages, message)
}

// AddSuccess records a success message.
func (r *Result) AddSuccess(message string) {
	r.SuccessCount++
	r.SuccessMessages = append(r.SuccessMessages, message)
}

// Failed reports whether any error was recorded.
func (r Result) Failed() bool {
	return r.ErrorCount > 0
}
