package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingServer records decoded request bodies and answers every input
// with a fixed vector of the requested dimension.
func embeddingServer(t *testing.T, dims int, requests *[]embeddingRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*requests = append(*requests, req)

		vec := make([]float32, dims)
		vec[0] = 1
		resp := embeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: vec})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestOpenAIEmbedder_RequestCarriesConfiguredDimensions(t *testing.T) {
	var requests []embeddingRequest
	srv := embeddingServer(t, 512, &requests)
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "test",
		Dimensions: 512,
	})
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "経費精算の締め日")
	require.NoError(t, err)

	// The configured dimension goes out on the wire, so the API returns
	// vectors matching the index dimension instead of model-native ones.
	require.Len(t, requests, 1)
	assert.Equal(t, 512, requests[0].Dimensions)
	assert.Equal(t, DefaultModel, requests[0].Model)
	assert.Len(t, vec, 512)
}

func TestOpenAIEmbedder_BatchSkipsEmptyTexts(t *testing.T) {
	var requests []embeddingRequest
	srv := embeddingServer(t, 8, &requests)
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "test",
		Dimensions: 8,
	})
	defer func() { _ = e.Close() }()

	vecs, err := e.EmbedBatch(context.Background(), []string{"本文", "  ", "規程"})
	require.NoError(t, err)

	// Blank input never reaches the API and maps to a zero vector of the
	// configured dimension.
	require.Len(t, requests, 1)
	assert.Equal(t, []string{"本文", "規程"}, requests[0].Input)
	require.Len(t, vecs, 3)
	assert.Equal(t, make([]float32, 8), vecs[1])
}
