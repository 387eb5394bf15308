package items

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"github.com/ravi-parthasarathy/workbench/pkg/resource"
)

// renderTemplate executes a Go template string against a data value.
func renderTemplate(tplStr string, data any) (string, error) {
	tpl, err := template.New("").Option("missingkey=error").Parse(tplStr)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// templateData is what command templates see.
type templateData struct {
	Name      string
	Files     []string
	Databases []string
	URLs      []string
}

func newTemplateData(name string, rs []resource.Resource) templateData {
	td := templateData{Name: name}
	for _, r := range rs {
		td.URLs = append(td.URLs, r.URL)
		switch r.Type {
		case resource.TypeFile:
			if p, err := r.Path(); err == nil {
				td.Files = append(td.Files, p)
			}
		case resource.TypeDatabase:
			td.Databases = append(td.Databases, r.URL)
		}
	}
	return td
}

func resolve(workdir, path string) string {
	if path == "" || filepath.IsAbs(path) || workdir == "" {
		return path
	}
	return filepath.Join(workdir, path)
}

func resolveAll(workdir string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = resolve(workdir, p)
	}
	return out
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// fileResource returns a file resource for path, flagged future when the
// file does not exist yet.
func fileResource(provider, path string) resource.Resource {
	r := resource.File(provider, path)
	if !fileExists(path) {
		return r.AsFuture()
	}
	return r
}
