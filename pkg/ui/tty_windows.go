//go:build windows

package ui

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// OpenTTY returns the console input handle. It is read-only on windows, prompts
// go to stdout.
func OpenTTY() (io.ReadWriteCloser, error) {
	handle, err := windows.GetStdHandle(windows.STD_INPUT_HANDLE)
	if err != nil {
		return nil, errors.Wrap(err, "could not get console handle")
	}

	fd := os.NewFile(uintptr(handle), "conin$")
	if fd == nil {
		return nil, errors.New("failed to create file from console handle")
	}

	return fd, nil
}
