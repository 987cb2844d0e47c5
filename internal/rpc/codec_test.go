package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodecRegistered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	assert.Equal(t, CodecName, c.Name())
}

func TestCodec_DocumentBytesPassThrough(t *testing.T) {
	doc := json.RawMessage(`{"items":[],"timestamp":"2024-01-01T00:00:00.000Z"}`)
	data, err := jsonCodec{}.Marshal(&PutDocumentRequest{Document: doc})
	require.NoError(t, err)

	var out PutDocumentRequest
	require.NoError(t, jsonCodec{}.Unmarshal(data, &out))
	assert.JSONEq(t, string(doc), string(out.Document))
}

func TestPublicMethods(t *testing.T) {
	assert.True(t, PublicMethods[Login_FullMethodName])
	assert.True(t, PublicMethods[Ping_FullMethodName])
	assert.False(t, PublicMethods[PutDocument_FullMethodName])
	assert.False(t, PublicMethods[WatchDocument_FullMethodName])
}
