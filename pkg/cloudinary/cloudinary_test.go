package cloudinary

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildPublicID(t *testing.T) {
	cases := map[string]string{
		"My Hero Shot.PNG":       "my-hero-shot-1234abcd",
		"../../etc/passwd.png":   "passwd-1234abcd",
		"эскиз.webp":             "entry-1234abcd",
		"landing__page--v2.jpeg": "landing-page-v2-1234abcd",
	}
	for name, expected := range cases {
		require.Equal(t, expected, buildPublicID(name, "1234abcd-0000-0000"), name)
	}

	long := buildPublicID(strings.Repeat("a", 90)+".gif", "1234abcd")
	require.Equal(t, strings.Repeat("a", 64)+"-1234abcd", long)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{}, zerolog.Nop())
	require.True(t, errors.Is(err, ErrNotConfigured))

	_, err = New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotConfigured))

	store, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/battles/"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "battles", store.folder)
}
