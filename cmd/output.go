package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// openOutput returns the named file, or stdout when path is empty. The
// returned close function is always safe to call.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output file %s", path)
	}
	return f, f.Close, nil
}
