package gform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAcceptedWith200(t *testing.T) {
	var gotField, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotField = r.PostForm.Get("entry.123456")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	err := New().Submit(context.Background(), server.URL, 123456, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "Alice", gotField)
}

func TestSubmitAcceptedWith302(t *testing.T) {
	confirmationHits := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/formResponse", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/confirmation", http.StatusFound)
	})
	mux.HandleFunc("/confirmation", func(w http.ResponseWriter, r *http.Request) {
		confirmationHits++
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	err := New().Submit(context.Background(), server.URL+"/formResponse", 1, "Bob")
	require.NoError(t, err)
	assert.Zero(t, confirmationHits, "the confirmation redirect must not be followed")
}

func TestSubmitRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := New().Submit(context.Background(), server.URL, 1, "Alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNetwork)
}

func TestSubmitNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	serverURL := server.URL
	server.Close()

	err := New().Submit(context.Background(), serverURL, 1, "Alice")
	assert.ErrorIs(t, err, ErrNetwork)
}
