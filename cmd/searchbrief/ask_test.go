package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/searchbrief/client"
)

func TestReplPrintsStreamAndResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(`{"token":"Channels "}` + "\n" + `{"token":"compose."}` + "\n" +
			`{"final":true,"searchResults":[{"title":"Pipelines","snippet":"","link":"https://go.dev/blog/pipelines","image":"","source":"Google","date":null}],"suggestions":["select"],"sessionId":3,"newSession":true}` + "\n"))
	}))
	defer srv.Close()

	c := client.New(srv.URL, "tok")
	var out bytes.Buffer
	c.Navigate = func(id int64) { out.WriteString("[nav]") }

	err := repl(context.Background(), c, strings.NewReader("golang channels\n:quit\n"), &out)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "Channels compose.")
	assert.Contains(t, got, "[nav]")
	assert.Contains(t, got, " 1. Pipelines (Google)")
	assert.Contains(t, got, "  - select")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("SEARCHBRIEF_GENERAL_JWT_SECRET", "cli-secret")
	cmd := tokenCMD()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"user-9", "--config", ""})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, 3, len(strings.Split(strings.TrimSpace(out.String()), ".")))
}
