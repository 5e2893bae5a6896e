package pagination_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmatcha/matcha-go/internal/utils/pagination"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	c := pagination.Cursor{UserID: 42, CreatedUnix: 1700000000000}

	token, err := pagination.Encode(c)
	require.NoError(t, err)

	got, err := pagination.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestDecode_EmptyTokenIsFirstPage(t *testing.T) {
	c, err := pagination.Decode("")
	require.NoError(t, err)
	assert.Zero(t, c.UserID)
	assert.Zero(t, c.CreatedUnix)
}

func TestDecode_GarbageRejected(t *testing.T) {
	_, err := pagination.Decode("!!not-base64!!")
	assert.Error(t, err)

	// valid base64, invalid JSON
	_, err = pagination.Decode("bm90LWpzb24=")
	assert.Error(t, err)
}
