package clipboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func withWriters(t *testing.T, primary, fallback func(string) error) {
	t.Helper()
	origPrimary, origFallback := writePrimary, writeFallback
	writePrimary, writeFallback = primary, fallback
	t.Cleanup(func() {
		writePrimary, writeFallback = origPrimary, origFallback
	})
}

func TestCopyPrimarySucceeds(t *testing.T) {
	var got string
	withWriters(t,
		func(s string) error { got = s; return nil },
		func(s string) error { t.Fatal("fallback should not run"); return nil },
	)

	require.NoError(t, Copy("http://localhost:8000/api/storage/shared/abc/"))
	require.Equal(t, "http://localhost:8000/api/storage/shared/abc/", got)
}

func TestCopyFallsBack(t *testing.T) {
	var got string
	withWriters(t,
		func(s string) error { return errors.New("no display") },
		func(s string) error { got = s; return nil },
	)

	require.NoError(t, Copy("link"))
	require.Equal(t, "link", got)
}

func TestCopyBothFail(t *testing.T) {
	withWriters(t,
		func(s string) error { return errors.New("no display") },
		func(s string) error { return errors.New("no tty") },
	)

	err := Copy("http://example.com/storage/shared/xyz/")
	require.Error(t, err)

	var copyErr *CopyError
	require.ErrorAs(t, err, &copyErr)
	require.Equal(t, "http://example.com/storage/shared/xyz/", copyErr.Text)
	require.Contains(t, err.Error(), "http://example.com/storage/shared/xyz/",
		"the raw URL must be recoverable from the failure")
}
