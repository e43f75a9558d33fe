package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/searchbrief/models"
)

// streamServer replies to /search with the given chunks, flushing after
// each one so lines can arrive split across reads.
func streamServer(t *testing.T, status int, contentType string, chunks ...string) (*httptest.Server, *[]searchBody) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []searchBody
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body searchBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		for _, c := range chunks {
			_, _ = w.Write([]byte(c))
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

const ndjson = "text/plain; charset=utf-8"

func TestSearchStreamsIntoNewSession(t *testing.T) {
	srv, bodies := streamServer(t, http.StatusOK, ndjson,
		`{"token":"Go "}`+"\n"+`{"tok`,
		`en":"uses goroutines."}`+"\n",
		`{"final":true,"searchResults":[{"title":"Pipelines","snippet":"s","link":"https://go.dev/blog/pipelines","image":"https://go.dev/p.png","source":"Google","date":null}],"suggestions":["select"],"sessionId":42,"newSession":true}`,
	)
	c := New(srv.URL, "tok")
	c.View.Load(models.Session{ID: 7, Searches: []models.Search{{Query: "old"}}})
	var navigated []int64
	c.Navigate = func(id int64) { navigated = append(navigated, id) }
	var streamed strings.Builder

	res, err := c.Search(context.Background(), "golang concurrency", func(tok string) { streamed.WriteString(tok) })
	require.NoError(t, err)

	assert.Equal(t, "Go uses goroutines.", streamed.String())
	assert.Equal(t, "Go uses goroutines.", res.Search.Summary)
	assert.True(t, res.NewSession)
	assert.Equal(t, []int64{42}, navigated)
	require.NotNil(t, c.View.SessionID())
	assert.Equal(t, int64(42), *c.View.SessionID())

	searches := c.View.Searches()
	require.Len(t, searches, 1)
	assert.Equal(t, "golang concurrency", searches[0].Query)
	assert.Len(t, searches[0].Results, 1)
	assert.Equal(t, []string{"select"}, searches[0].Suggestions)

	require.Len(t, *bodies, 1)
	require.NotNil(t, (*bodies)[0].SessionID)
	assert.Equal(t, int64(7), *(*bodies)[0].SessionID)
}

func TestSearchAppendsWithinSameSession(t *testing.T) {
	srv, _ := streamServer(t, http.StatusOK, ndjson,
		`{"token":"more"}`+"\n"+`{"final":true,"searchResults":[],"suggestions":[],"sessionId":7,"newSession":false}`+"\n",
	)
	c := New(srv.URL, "tok")
	c.View.Load(models.Session{ID: 7, Searches: []models.Search{{Query: "first", Summary: "done"}}})
	c.Navigate = func(int64) { t.Fatal("navigate must not be called for the same session") }

	_, err := c.Search(context.Background(), "second", nil)
	require.NoError(t, err)

	searches := c.View.Searches()
	require.Len(t, searches, 2)
	assert.Equal(t, "first", searches[0].Query)
	assert.Equal(t, "second", searches[1].Query)
	assert.Equal(t, "more", searches[1].Summary)
}

func TestSearchLimitReachedRollsBack(t *testing.T) {
	srv, _ := streamServer(t, http.StatusOK, ndjson,
		`{"token":"x"}`+"\n"+`{"final":true,"searchResults":[],"suggestions":[],"sessionId":7,"limitReached":true,"message":"This session is full (15 searches max). Start a new one or upgrade for more!"}`+"\n",
	)
	c := New(srv.URL, "tok")
	c.View.Load(models.Session{ID: 7, Searches: []models.Search{{Query: "first"}}})

	res, err := c.Search(context.Background(), "second", nil)
	require.ErrorIs(t, err, ErrLimitReached)
	assert.Contains(t, err.Error(), "15 searches max")
	assert.Contains(t, res.Message, "session is full")

	searches := c.View.Searches()
	require.Len(t, searches, 1)
	assert.Equal(t, "first", searches[0].Query)
	assert.Equal(t, int64(7), *c.View.SessionID())
}

func TestSearchFailuresRollBack(t *testing.T) {
	cases := map[string]*httptest.Server{}
	cases["error line"], _ = streamServer(t, http.StatusOK, ndjson, `{"token":"par"}`+"\n"+`{"error":"Failed to generate summary"}`+"\n")
	cases["eof without final"], _ = streamServer(t, http.StatusOK, ndjson, `{"token":"par"}`+"\n")
	cases["server error"], _ = streamServer(t, http.StatusInternalServerError, "application/json", `{"error":"search failed"}`)

	for name, srv := range cases {
		t.Run(name, func(t *testing.T) {
			c := New(srv.URL, "")
			_, err := c.Search(context.Background(), "q", nil)
			require.ErrorIs(t, err, ErrStream)
			assert.Empty(t, c.View.Searches())

			// the query is released for a retry
			_, err = c.Search(context.Background(), "q", nil)
			assert.NotErrorIs(t, err, ErrInFlight)
		})
	}
}

func TestSearchSoftEmpty(t *testing.T) {
	srv, _ := streamServer(t, http.StatusOK, "application/json; charset=UTF-8",
		`{"message":"Hmm, nothing","searchResults":[],"suggestions":[]}`)
	c := New(srv.URL, "")

	res, err := c.Search(context.Background(), "zzz", nil)
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, "Hmm, nothing", res.Message)
	assert.Empty(t, c.View.Searches())
}

func TestSearchAnonymousKeepsEntry(t *testing.T) {
	srv, _ := streamServer(t, http.StatusOK, ndjson,
		`{"token":"hi"}`+"\n"+`{"final":true,"searchResults":[],"suggestions":[],"sessionId":null}`)
	c := New(srv.URL, "")

	res, err := c.Search(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, res.SessionID)
	assert.Nil(t, c.View.SessionID())
	require.Len(t, c.View.Searches(), 1)
	assert.Equal(t, "hi", c.View.Searches()[0].Summary)
}

func TestSearchRejectsDuplicateInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", ndjson)
		close(started)
		<-release
		_, _ = w.Write([]byte(`{"final":true,"searchResults":[],"suggestions":[],"sessionId":1}` + "\n"))
	}))
	defer srv.Close()
	c := New(srv.URL, "tok")

	done := make(chan error, 1)
	go func() {
		_, err := c.Search(context.Background(), "same", nil)
		done <- err
	}()
	<-started
	_, err := c.Search(context.Background(), "same", nil)
	assert.ErrorIs(t, err, ErrInFlight)
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first search did not finish")
	}
	assert.Len(t, c.View.Searches(), 1)
}

func TestSearchEmptyQuery(t *testing.T) {
	c := New("http://unused", "")
	_, err := c.Search(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestOpenLoadsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/9", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":9,"user_id":"u","searches":[{"query":"a","summary":"b","results":[],"suggestions":[],"timestamp":"t"}]}`))
	}))
	defer srv.Close()
	c := New(srv.URL, "tok")

	require.NoError(t, c.Open(context.Background(), 9))
	assert.Equal(t, int64(9), *c.View.SessionID())
	require.Len(t, c.View.Searches(), 1)
	assert.Equal(t, "a", c.View.Searches()[0].Query)
}
