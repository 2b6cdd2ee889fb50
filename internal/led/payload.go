// Package led loads the device documents that switch a UniFi device's
// LED on or off. Each mode has its own JSON file holding the complete
// device document to push; the files are read fresh on every call.
package led

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Mode is the desired LED state.
type Mode string

// Recognized modes.
const (
	On  Mode = "on"
	Off Mode = "off"
)

// ErrPayloadNotFound is returned when the file for a mode is missing.
// It wraps fs.ErrNotExist.
var ErrPayloadNotFound = fmt.Errorf("LED payload file not found: %w", fs.ErrNotExist)

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case On, Off:
		return m, nil
	default:
		return "", fmt.Errorf("unknown LED mode %q (want on or off)", s)
	}
}

// FileName returns the payload file name for m.
func (m Mode) FileName() string {
	if m == On {
		return "led_on.json"
	}
	return "led_off.json"
}

// Document is a controller device document. Its shape is defined by
// the controller, so it is kept as generic JSON. Numbers are decoded as
// json.Number so they round-trip unchanged.
type Document map[string]any

// ParseError reports a payload file that is not a JSON object.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse LED payload %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads the payload file for m from dir.
func Load(m Mode, dir string) (Document, error) {
	path := filepath.Join(dir, m.FileName())

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPayloadNotFound, path)
		}
		return nil, fmt.Errorf("read LED payload: %w", err)
	}

	doc, err := decode(data)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return doc, nil
}

func decode(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("document is null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return doc, nil
}

// ExecutableDir returns the directory holding the running binary, with
// symlinks resolved, so that payload files are found the same way from
// cron as from a shell.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
