package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	require.True(t, Password("Password1!"))
	require.True(t, Password("Secure123@"))

	require.False(t, Password("password1!"), "no upper-case letter")
	require.False(t, Password("Password!"), "no digit")
	require.False(t, Password("Password1"), "no special character")
	require.False(t, Password("Pwd1!"), "too short")
	require.False(t, Password(""))
}

func TestEmail(t *testing.T) {
	require.True(t, Email("test@example.com"))
	require.True(t, Email("user.name+tag@domain.co"))

	require.False(t, Email("test.example.com"), "no @")
	require.False(t, Email("test@"), "no domain")
	require.False(t, Email("test@domain"), "no dot in domain")
	require.False(t, Email("test @example.com"), "whitespace")
}

func TestUsername(t *testing.T) {
	require.True(t, Username("user123"))
	require.True(t, Username("UserName"))

	require.False(t, Username("1username"), "leading digit")
	require.False(t, Username("usr"), "too short")
	require.False(t, Username("thisusernameistoolong123"), "too long")
	require.False(t, Username("user@name"), "special character")
	require.False(t, Username(strings.Repeat("a", 21)))
	require.True(t, Username(strings.Repeat("a", 20)))
}
