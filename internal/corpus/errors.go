package corpus

import (
	"errors"
	"fmt"
)

// ErrEmptyCorpus is returned when loading yields no usable records. It is a configuration error.
var ErrEmptyCorpus = errors.New("corpus is empty")

// SourceError reports that a corpus source could not be read (network, access or format).
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("corpus source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
