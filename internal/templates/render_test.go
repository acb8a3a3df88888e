package templates

import (
	"bytes"
	"io/fs"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/web"
)

func TestEmbeddedTemplatesLoad(t *testing.T) {
	files, err := fs.Sub(web.TemplatesFS, "templates")
	require.NoError(t, err)

	r, err := New(files, false, zerolog.Nop())
	require.NoError(t, err)

	assert.Subset(t, r.Defines(), []string{"base", "content", "categories", "kpis", "table"})
}

func TestRenderPartial(t *testing.T) {
	files := fstest.MapFS{
		"partials/greeting.html": {Data: []byte(`{{define "greeting"}}Hello {{.Name}}, {{formatNumber .Count}} rows{{end}}`)},
	}
	r, err := New(files, false, zerolog.Nop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, r.RenderPartial(rec, "greeting", map[string]interface{}{"Name": "Ada Lovelace", "Count": 12345}))
	assert.Equal(t, "Hello Ada Lovelace, 12,345 rows", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestRenderFailureWritesNoPartialOutput(t *testing.T) {
	files := fstest.MapFS{
		"partials/broken.html": {Data: []byte(`{{define "broken"}}before{{index .Missing 3}}{{end}}`)},
	}
	r, err := New(files, false, zerolog.Nop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	assert.Error(t, r.RenderPartial(rec, "broken", map[string]interface{}{"Missing": []int{}}))
	assert.Equal(t, 500, rec.Code)
	assert.NotContains(t, rec.Body.String(), "before")
}

func TestUndefinedTemplateReference(t *testing.T) {
	files := fstest.MapFS{
		"pages/page.html": {Data: []byte(`{{define "page"}}{{template "nowhere" .}}{{end}}`)},
	}
	_, err := New(files, false, zerolog.Nop())
	assert.ErrorContains(t, err, "undefined template reference")
}

func TestParseErrorIsReported(t *testing.T) {
	files := fstest.MapFS{
		"pages/page.html": {Data: []byte("line one\n{{if}}\n")},
	}
	var buf bytes.Buffer
	_, err := New(files, false, zerolog.New(&buf))
	assert.ErrorContains(t, err, "template parsing failed")
	assert.Contains(t, buf.String(), `"message":"Template parse error"`)
	assert.Contains(t, buf.String(), `"detail":"\n  File: pages/page.html`)
}

func TestDebugReloadWithConcurrentRenders(t *testing.T) {
	files := fstest.MapFS{
		"partials/count.html": {Data: []byte(`{{define "count"}}{{formatNumber .}}{{end}}`)},
	}
	r, err := New(files, true, zerolog.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			assert.NoError(t, r.RenderPartial(rec, "count", 1000))
			assert.Equal(t, "1,000", rec.Body.String())
		}()
	}
	wg.Wait()
}

func TestNoTemplates(t *testing.T) {
	_, err := New(fstest.MapFS{}, false, zerolog.Nop())
	assert.Error(t, err)
}

func TestFormatTemplateError(t *testing.T) {
	content := "a\nb\nc\nd\n"
	out := formatTemplateError("pages/x.html", content, assertErr("template: x.html:3: unexpected EOF"))

	assert.Contains(t, out, "File: pages/x.html")
	assert.Contains(t, out, "Line: 3")
	assert.Contains(t, out, ">>>    3 | c")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestFuncs(t *testing.T) {
	assert.Equal(t, "0", formatNumber(0))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "-1,234,567", formatNumber(-1234567))

	assert.Equal(t, 5, add(2, 3))
	assert.Equal(t, 1, sub(3, 2))
}
