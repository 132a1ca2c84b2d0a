package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataURL(t *testing.T) {
	mime, data, err := parseDataURL("data:image/webp;base64,aGk=")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", mime)
	assert.Equal(t, []byte("hi"), data)

	mime, data, err = parseDataURL("aGk=")
	require.NoError(t, err)
	assert.Equal(t, defaultImageMIME, mime)
	assert.Equal(t, []byte("hi"), data)

	_, _, err = parseDataURL("data:image/png;base64")
	assert.Error(t, err)
}

func TestAsDataURL(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,aGk=", asDataURL("aGk="))
	assert.Equal(t, "data:image/png;base64,aGk=", asDataURL("data:image/png;base64,aGk="))
	assert.Equal(t, "https://x.test/a.png", asDataURL("https://x.test/a.png"))
}
