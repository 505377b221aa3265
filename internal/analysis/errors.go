package analysis

import "errors"

// InvalidInputError reports malformed or unusable attempt data, such as a
// missing question tree or a zero question count. It is fatal to the request.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid attempt input: " + e.Reason
}

// IsInvalidInput reports whether err is (or wraps) an InvalidInputError.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}
