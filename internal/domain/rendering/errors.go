package rendering

// Kind identifies a render-pipeline failure category. Kinds are not Go
// types; they are a closed vocabulary the dispatcher switches on to decide
// retry/dead-letter policy.
type Kind string

const (
	KindTemplateParse Kind = "TEMPLATE_PARSE"
	KindTemplateEval  Kind = "TEMPLATE_EVAL"
	KindPoolTimeout   Kind = "POOL_TIMEOUT"
	KindPoolDisposed  Kind = "POOL_DISPOSED"
	KindRenderLoad    Kind = "RENDER_LOAD"
	KindRenderPDF     Kind = "RENDER_PDF"
	KindCancelled     Kind = "CANCELLED"
	KindIOTemplate    Kind = "IO_TEMPLATE"
	KindIOOutput      Kind = "IO_OUTPUT"
)

// Error is a kind-tagged render failure, the taxonomy value every
// component in the core surfaces instead of recovering from.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a kind-tagged error.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if ok := asError(err, &re); ok {
		return re.Kind, true
	}
	return "", false
}

// asError is errors.As without importing errors at package scope twice;
// kept as a tiny indirection so KindOf reads like the rest of this file.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Retryable reports whether a queue-mode dispatcher should ask the
// transport to retry, per the §7 error-taxonomy policy table.
func Retryable(kind Kind) bool {
	switch kind {
	case KindTemplateParse, KindTemplateEval, KindPoolTimeout, KindRenderLoad, KindRenderPDF, KindIOOutput:
		return true
	case KindPoolDisposed, KindCancelled, KindIOTemplate:
		return false
	default:
		return false
	}
}
