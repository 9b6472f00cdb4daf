package model

import (
	"github.com/gomlx/exceptions"
)

// catch converts a thrown builder error into a plain error for assertions.
func catch(fn func()) error {
	return exceptions.TryCatch[error](fn)
}
