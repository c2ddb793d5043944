package generic

import "errors"

// Result is the structured outcome returned by every core operation.
// Rejections never escape as errors; callers branch on Success.
type Result struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	Kind       ErrorKind `json:"kind,omitempty"`
	Code       string    `json:"code,omitempty"`
	Conflicts  []string  `json:"conflicts,omitempty"`
	MissingIDs []string  `json:"missingIds,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// OK builds a successful Result.
func OK(message string) Result {
	return Result{Success: true, Message: message}
}

// ResultFromError converts err into a failed Result, lifting the context
// carried by the structured error types.
func ResultFromError(err error) Result {
	r := Result{Success: false, Error: err.Error(), Kind: KindOf(err)}

	var ve *ValidationError
	var re *ReferentialError
	var ce *ConflictError
	switch {
	case errors.As(err, &ve):
		r.Code = ve.Code
	case errors.As(err, &re):
		r.MissingIDs = re.IDs
	case errors.As(err, &ce):
		r.Code = ce.Kind
		r.Conflicts = ce.Conflicts
	}
	return r
}

// WithWarning attaches a partial failure to a successful Result.
func (r Result) WithWarning(w *PartialFailureWarning) Result {
	if w == nil {
		return r
	}
	r.Warnings = append(r.Warnings, w.Failures...)
	if r.Kind == KindNone {
		r.Kind = KindPartialFailure
	}
	return r
}
