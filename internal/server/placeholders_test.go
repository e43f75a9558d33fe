package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/searchbrief/config"
)

func TestPlaceholdersCached(t *testing.T) {
	llm := &fakeLLM{completion: "How do black holes form?\n\nbest hiking trails near me\n"}
	srv := newTestServer(t, llm, nil, config.SessionsConfig{})

	for i := 0; i < 2; i++ {
		rec := srv.do(t, http.MethodGet, "/placeholders", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp placeholdersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"How do black holes form?", "best hiking trails near me"}, resp.Placeholders)
	}
	assert.Equal(t, 1, llm.completeCalls())
}

func TestPlaceholdersFallback(t *testing.T) {
	llm := &fakeLLM{completeErr: errors.New("quota exceeded")}
	srv := newTestServer(t, llm, nil, config.SessionsConfig{})

	rec := srv.do(t, http.MethodGet, "/placeholders", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"placeholders":["Search something interesting..."]}`, rec.Body.String())

	rec = srv.do(t, http.MethodGet, "/placeholders", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 2, llm.completeCalls())
}
