package utils

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// WrapError annotates err with the calling function and its position, so log
// lines emitted far from the failing request still point at the call site.
// The original error stays unwrappable.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	pc, file, line, ok := runtime.Caller(1)
	if !ok {
		return err
	}

	caller := "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller = filepath.Base(fn.Name())
	}

	return fmt.Errorf("%s (%s:%d): %w", caller, filepath.Base(file), line, err)
}
