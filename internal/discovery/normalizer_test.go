package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL_SameIdentity(t *testing.T) {
	variants := []string{
		"https://www.npmjs.com/",
		"http://npmjs.com",
		"npmjs.com/",
		"HTTPS://WWW.NPMJS.COM#top",
	}
	for _, v := range variants {
		key, err := NormalizeURL(v)
		require.NoError(t, err, v)
		assert.Equal(t, "npmjs.com", key, v)
	}
}

func TestNormalizeURL_KeepsPathAndQuery(t *testing.T) {
	key, err := NormalizeURL("https://github.com/owner/repo/?tab=readme")
	require.NoError(t, err)
	assert.Equal(t, "github.com/owner/repo?tab=readme", key)
}

func TestNormalizeURL_Invalid(t *testing.T) {
	_, err := NormalizeURL("")
	assert.Error(t, err)
	_, err = NormalizeURL("https://")
	assert.Error(t, err)
}

func TestCanonicalURL(t *testing.T) {
	u, err := CanonicalURL("npmjs.com#x")
	require.NoError(t, err)
	assert.Equal(t, "https://npmjs.com/", u)

	_, err = CanonicalURL("ftp://example.com")
	assert.Error(t, err)
}
