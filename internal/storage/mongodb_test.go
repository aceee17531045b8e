package storage

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

// compiles a driver regex the way the server applies it
func compileRegex(t *testing.T, pattern, options string) *regexp.Regexp {
	t.Helper()
	require.Equal(t, "i", options)
	re, err := regexp.Compile("(?i)" + pattern)
	require.NoError(t, err)
	return re
}

func TestExactName(t *testing.T) {
	r := exactName("Amit")
	re := compileRegex(t, r.Pattern, r.Options)
	require.True(t, re.MatchString("amit"))
	require.True(t, re.MatchString("AMIT"))
	require.False(t, re.MatchString("Amitabh"))
	require.False(t, re.MatchString("Mr Amit"))
}

func TestExactName_QuotesMetacharacters(t *testing.T) {
	r := exactName("A.K. (Sons)+")
	re := compileRegex(t, r.Pattern, r.Options)
	require.True(t, re.MatchString("a.k. (sons)+"))
	require.False(t, re.MatchString("AxKx (Sons)"))
	require.False(t, re.MatchString("A.K. Sonss"))

	r = exactName(".*")
	re = compileRegex(t, r.Pattern, r.Options)
	require.False(t, re.MatchString("anyone"))
	require.True(t, re.MatchString(".*"))
}

func TestContainsName(t *testing.T) {
	r := containsName("kumar")
	re := compileRegex(t, r.Pattern, r.Options)
	require.True(t, re.MatchString("Raj Kumar Stores"))
	require.False(t, re.MatchString("Raj Kumr"))

	r = containsName("[a-z]")
	re = compileRegex(t, r.Pattern, r.Options)
	require.False(t, re.MatchString("plain name"))
	require.True(t, re.MatchString("shop [A-Z] ltd"))
}
