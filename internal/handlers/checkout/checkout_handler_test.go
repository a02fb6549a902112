package checkout_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dergipress/payment-service/internal/handlers/checkout"
)

func TestHandler_ListConsentDocuments(t *testing.T) {
	h := checkout.NewHandler(nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/consents", nil)
	rec := httptest.NewRecorder()
	h.ListConsentDocuments(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var docs []struct {
		Type    string `json:"type"`
		Version string `json:"version"`
		URL     string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 3)

	byType := make(map[string]string, len(docs))
	for _, d := range docs {
		byType[d.Type] = d.Version
		assert.True(t, strings.HasPrefix(d.URL, "https://"), "document %s needs an absolute link", d.Type)
		assert.Contains(t, d.URL, d.Version, "document %s link must pin its version", d.Type)
	}
	assert.Equal(t, "v3", byType["kvkk"])
	assert.Equal(t, "v2", byType["distance_sales"])
	assert.Equal(t, "v1", byType["subscription"])
}
