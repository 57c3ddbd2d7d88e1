package manus

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTask(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/tasks", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task_id": "task-abc"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", nil)
	taskID, err := c.CreateTask(context.Background(), "murphy_media")
	require.NoError(t, err)

	assert.Equal(t, "task-abc", taskID)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "murphy_media", gotBody["company"])
	assert.Equal(t, "long_running", gotBody["mode"])
}

func TestCreateTask_EmptyTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", nil)
	_, err := c.CreateTask(context.Background(), "murphy_media")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty task_id")
}

func TestCreateTask_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", nil)
	_, err := c.CreateTask(context.Background(), "murphy_media")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestUploadFile(t *testing.T) {
	var gotPath, gotFilename, gotContentType string
	var gotData []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotFilename = hdr.Filename
		gotContentType = r.FormValue("content_type")
		gotData, err = io.ReadAll(f)
		require.NoError(t, err)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", nil)
	err := c.UploadFile(context.Background(), "task-abc", "statement.pdf", "application/pdf", []byte("bytes"))
	require.NoError(t, err)

	assert.Equal(t, "/v1/tasks/task-abc/files", gotPath)
	assert.Equal(t, "statement.pdf", gotFilename)
	assert.Equal(t, "application/pdf", gotContentType)
	assert.Equal(t, []byte("bytes"), gotData)
}

func TestUploadFile_ClientErrorIsNotRetried(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "no such task", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", nil)
	err := c.UploadFile(context.Background(), "gone", "f.pdf", "application/pdf", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, 1, hits)
}
