package api

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*
var templateFS embed.FS

func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"aqi": func(f float64) string {
			return fmt.Sprintf("%.0f", f)
		},
		"withQuery": func(path, query string) template.URL {
			if query == "" {
				return template.URL(path)
			}
			return template.URL(path + "?" + query)
		},
		"title": func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
