// Package testutil provides testing utilities for the dashboard server.
package testutil

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// SampleCSV is the three-row dataset used across handler tests
const SampleCSV = "Date,Category,Revenue,Expenses\n" +
	"2023-01-05,A,100,50\n" +
	"2023-01-20,B,50,10\n" +
	"2023-02-03,A,200,70\n"

// TestServer wraps httptest.Server with convenience methods.
// Its client keeps cookies, so consecutive requests share one session.
type TestServer struct {
	Server  *httptest.Server
	BaseURL string
	Client  *http.Client
	t       *testing.T
}

// ProjectRoot returns the root directory of the project.
// It works by finding the go.mod file.
func ProjectRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("could not get caller info")
	}

	// Start from this file's directory and walk up
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			panic("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// NewTestServer creates a new test server using the application's router
func NewTestServer(t *testing.T, router http.Handler) *TestServer {
	t.Helper()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}

	return &TestServer{
		Server:  server,
		BaseURL: server.URL,
		Client:  &http.Client{Jar: jar},
		t:       t,
	}
}

// GET performs a GET request to the given path
func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()

	resp, err := ts.Client.Get(ts.BaseURL + path)
	if err != nil {
		ts.t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

// GETWithQuery performs a GET request with query parameters
func (ts *TestServer) GETWithQuery(path string, query url.Values) *http.Response {
	ts.t.Helper()

	target := ts.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	resp, err := ts.Client.Get(target)
	if err != nil {
		ts.t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

// POST performs a POST request to the given path
func (ts *TestServer) POST(path string, contentType string, body io.Reader) *http.Response {
	ts.t.Helper()

	resp, err := ts.Client.Post(ts.BaseURL+path, contentType, body)
	if err != nil {
		ts.t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp
}

// Upload posts content as the multipart field "file" with the given filename
func (ts *TestServer) Upload(path, filename string, content []byte) *http.Response {
	ts.t.Helper()
	return ts.UploadWithFields(path, filename, content, nil)
}

// UploadWithFields posts a multipart form with a "file" part and extra form fields
func (ts *TestServer) UploadWithFields(path, filename string, content []byte, fields url.Values) *http.Response {
	ts.t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(name, v); err != nil {
				ts.t.Fatalf("write form field: %v", err)
			}
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		ts.t.Fatalf("create form file: %v", err)
	}
	part.Write(content)
	if err := mw.Close(); err != nil {
		ts.t.Fatalf("close multipart writer: %v", err)
	}

	return ts.POST(path, mw.FormDataContentType(), &body)
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

