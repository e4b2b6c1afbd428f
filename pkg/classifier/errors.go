package classifier

import "errors"

// ErrProcessing is the parent of every classification failure. Uploads treat
// it as non-fatal: the image stays saved and the error is reported as a field.
var ErrProcessing = errors.New("classification failed")

var (
	ErrUndecodable   = wrap("image could not be decoded")
	ErrTimeout       = wrap("classifier timed out")
	ErrProcessFailed = wrap("classifier process failed")
	ErrNoOutput      = wrap("classifier produced no output file")
	ErrBadOutput     = wrap("classifier output is malformed")
)

type procError struct{ msg string }

func (e *procError) Error() string        { return e.msg }
func (e *procError) Is(target error) bool { return target == ErrProcessing }

func wrap(msg string) error { return &procError{msg: msg} }
