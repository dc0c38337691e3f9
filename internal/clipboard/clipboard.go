// Package clipboard copies a share URL for the user. The system clipboard
// is tried first, then an OSC 52 escape sequence written to the terminal;
// when both fail the error carries the raw text so it can be used manually.
package clipboard

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/atotto/clipboard"
)

// CopyError means both copy mechanisms failed. Text holds the value that
// could not be copied.
type CopyError struct {
	Text        string
	PrimaryErr  error
	FallbackErr error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("nie udało się skopiować do schowka (%v; %v), skopiuj ręcznie: %s",
		e.PrimaryErr, e.FallbackErr, e.Text)
}

// Swappable in tests.
var (
	writePrimary  = clipboard.WriteAll
	writeFallback = writeOSC52
)

// Copy writes text to the clipboard, probing the primary mechanism first
// and the legacy terminal fallback second.
func Copy(text string) error {
	primaryErr := writePrimary(text)
	if primaryErr == nil {
		return nil
	}

	fallbackErr := writeFallback(text)
	if fallbackErr == nil {
		return nil
	}

	return &CopyError{
		Text:        text,
		PrimaryErr:  primaryErr,
		FallbackErr: fallbackErr,
	}
}

// writeOSC52 asks the terminal emulator to fill the clipboard. Works over
// ssh where no display server is reachable.
func writeOSC52(text string) error {
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer tty.Close()

	_, err = fmt.Fprintf(tty, "\x1b]52;c;%s\x07", base64.StdEncoding.EncodeToString([]byte(text)))
	return err
}
