package templates

import (
	"bufio"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	lineNumberRe   = regexp.MustCompile(`:(\d+):`)
	templateCallRe = regexp.MustCompile(`\{\{-?\s*template\s+"([^"]+)"`)
)

// Renderer handles template rendering
type Renderer struct {
	mu        sync.RWMutex
	templates *template.Template
	files     fs.FS
	debug     bool
	log       zerolog.Logger
}

// New creates a new template renderer reading layouts, pages and partials from files.
// In debug mode templates are re-parsed on every render.
func New(files fs.FS, debug bool, log zerolog.Logger) (*Renderer, error) {
	r := &Renderer{
		files: files,
		debug: debug,
		log:   log,
	}

	if err := r.loadTemplates(); err != nil {
		return nil, err
	}

	return r, nil
}

// getFuncMap returns the template function map
func getFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatNumber": formatNumber,
		"add":          add,
		"sub":          sub,
	}
}

// loadTemplates parses all templates with strict validation
func (r *Renderer) loadTemplates() error {
	tmpl := template.New("").Funcs(getFuncMap())

	// Collect all template files
	var templateFiles []string
	for _, subdir := range []string{"layouts", "pages", "partials"} {
		matches, err := fs.Glob(r.files, path.Join(subdir, "*.html"))
		if err != nil {
			return fmt.Errorf("error globbing %s: %w", subdir, err)
		}
		templateFiles = append(templateFiles, matches...)
	}

	if len(templateFiles) == 0 {
		return fmt.Errorf("no template files found")
	}

	// Parse each template file individually for better error reporting
	var parseErrors []string
	contents := make(map[string]string, len(templateFiles))
	for _, file := range templateFiles {
		content, err := fs.ReadFile(r.files, file)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("  %s: failed to read: %v", file, err))
			continue
		}
		contents[file] = string(content)

		if _, err := tmpl.New(path.Base(file)).Parse(string(content)); err != nil {
			parseErrors = append(parseErrors, formatTemplateError(file, string(content), err))
		}
	}

	if len(parseErrors) > 0 {
		for _, e := range parseErrors {
			r.log.Error().Str("detail", e).Msg("Template parse error")
		}
		return fmt.Errorf("template parsing failed with %d error(s)", len(parseErrors))
	}

	if err := r.validateTemplateReferences(tmpl, templateFiles, contents); err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()
	r.log.Debug().Int("files", len(templateFiles)).Msg("Templates loaded")
	return nil
}

// formatTemplateError formats a template error with file context
func formatTemplateError(file, content string, err error) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n  File: %s\n", file))

	errStr := err.Error()
	lineNum := extractLineNumber(errStr)

	if lineNum > 0 {
		sb.WriteString(fmt.Sprintf("  Line: %d\n", lineNum))
		sb.WriteString(fmt.Sprintf("  Error: %s\n", errStr))
		sb.WriteString("  Context:\n")

		// Show surrounding lines
		lines := strings.Split(content, "\n")
		start := lineNum - 3
		if start < 0 {
			start = 0
		}
		end := lineNum + 2
		if end > len(lines) {
			end = len(lines)
		}

		for i := start; i < end; i++ {
			marker := "   "
			if i+1 == lineNum {
				marker = ">>>"
			}
			sb.WriteString(fmt.Sprintf("    %s %4d | %s\n", marker, i+1, lines[i]))
		}
	} else {
		sb.WriteString(fmt.Sprintf("  Error: %s\n", errStr))
	}

	return sb.String()
}

// extractLineNumber tries to extract a line number from a template error
func extractLineNumber(errStr string) int {
	matches := lineNumberRe.FindStringSubmatch(errStr)
	if len(matches) >= 2 {
		var lineNum int
		fmt.Sscanf(matches[1], "%d", &lineNum)
		return lineNum
	}
	return 0
}

// validateTemplateReferences checks that all {{template "name"}} calls reference defined templates
func (r *Renderer) validateTemplateReferences(tmpl *template.Template, files []string, contents map[string]string) error {
	defined := make(map[string]bool)
	for _, t := range tmpl.Templates() {
		if t.Name() != "" {
			defined[t.Name()] = true
		}
	}

	var refErrors []string
	for _, file := range files {
		scanner := bufio.NewScanner(strings.NewReader(contents[file]))
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			for _, match := range templateCallRe.FindAllStringSubmatch(line, -1) {
				if !defined[match[1]] {
					refErrors = append(refErrors, fmt.Sprintf("%s:%d: undefined template %q", file, lineNum, match[1]))
				}
			}
		}
	}

	if len(refErrors) > 0 {
		for _, e := range refErrors {
			r.log.Error().Msg(e)
		}
		return fmt.Errorf("found %d undefined template reference(s)", len(refErrors))
	}

	return nil
}

// Defines lists the named templates declared with {{define}} in the parsed files
func (r *Renderer) Defines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, t := range r.templates.Templates() {
		if name := t.Name(); name != "" && !strings.HasSuffix(name, ".html") {
			names = append(names, name)
		}
	}
	return names
}

// Render renders a full page with the base layout
func (r *Renderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	return r.execute(w, name, data)
}

// RenderPartial renders a partial template (no base layout)
func (r *Renderer) RenderPartial(w http.ResponseWriter, name string, data interface{}) error {
	return r.execute(w, name, data)
}

func (r *Renderer) execute(w http.ResponseWriter, name string, data interface{}) error {
	// In debug mode, reload templates on each request
	if r.debug {
		if err := r.loadTemplates(); err != nil {
			r.log.Error().Err(err).Msg("Error reloading templates")
		}
	}

	r.mu.RLock()
	tmpl := r.templates
	r.mu.RUnlock()

	// Nothing reaches w unless the template executes cleanly
	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		r.log.Error().Err(err).Str("template", name).Msg("Error rendering template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := io.WriteString(w, buf.String())
	return err
}

// Template functions

// formatNumber groups thousands, e.g. 12345 -> "12,345"
func formatNumber(v int) string {
	return message.NewPrinter(language.English).Sprintf("%d", v)
}

func add(a, b int) int { return a + b }
func sub(a, b int) int { return a - b }
