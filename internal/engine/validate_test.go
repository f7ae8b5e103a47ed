package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidFullName(t *testing.T) {
	valid := []string{"John Smith", "Anna Maria Lopez", "Li Na", "  John   Smith  "}
	for _, name := range valid {
		require.True(t, validFullName(name), "expected valid: %q", name)
	}

	invalid := []string{"John", "", "  ", "ab"}
	for _, name := range invalid {
		require.False(t, validFullName(name), "expected invalid: %q", name)
	}
}

func TestValidPhone(t *testing.T) {
	valid := []string{
		"+15550001122",
		"15550001122",
		"+1 555 000-1122",
		"8 (555) 000-11",
	}
	for _, phone := range valid {
		require.True(t, validPhone(phone), "expected valid: %q", phone)
	}

	invalid := []string{
		"",
		"12345",                 // too short
		"not a phone",           // letters
		"+123456789012345678",   // too long
		"555-000-1122 ext. 404", // letters and too long
		"((((((((",              // separators only, no digits
		"--------",              // separators only, no digits
		"(  -  ) -",             // separators only, no digits
		"(555) 00-",             // right length but fewer than 8 digits
	}
	for _, phone := range invalid {
		require.False(t, validPhone(phone), "expected invalid: %q", phone)
	}
}

func TestValidUsername(t *testing.T) {
	require.True(t, validUsername("ops_one"))
	require.True(t, validUsername("@ops_one"))
	require.False(t, validUsername(""))
	require.False(t, validUsername("@"))
	require.False(t, validUsername("two words"))
}

func TestValidCity(t *testing.T) {
	require.True(t, validCity("Boston"))
	require.False(t, validCity("B"))
	require.False(t, validCity("  "))
}
