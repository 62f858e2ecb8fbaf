package imaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a}

	uri := EncodeDataURI(original, "image/png")
	assert.Equal(t, "data:image/png;base64,iVBORw0K", uri)

	data, mimeType, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, original, data)
	assert.Equal(t, "image/png", mimeType)
}

func TestEncodeDataURI_DefaultsMIMEType(t *testing.T) {
	uri := EncodeDataURI([]byte("leaf"), "")
	assert.Equal(t, "data:image/jpeg;base64,bGVhZg==", uri)
}

func TestDecodeDataURI_Invalid(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{name: "missing data prefix", uri: "image/png;base64,aGk="},
		{name: "missing separator", uri: "data:image/png;base64"},
		{name: "not base64 encoded", uri: "data:text/plain,hello"},
		{name: "corrupt payload", uri: "data:image/png;base64,@@@@"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeDataURI(tt.uri)
			require.ErrorIs(t, err, ErrInvalidDataURI)
		})
	}
}

func TestDecodeDataURI_EmptyMIMETypeDefaults(t *testing.T) {
	data, mimeType, err := DecodeDataURI("data:;base64,aGk=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)
	assert.Equal(t, "image/jpeg", mimeType)
}
