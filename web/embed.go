// Package web carries the page templates and browser assets compiled into
// the frontend binary.
package web

import "embed"

// TemplatesFS holds the html/template sources of pages and fragments.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the browser script.
//
//go:embed static/*
var StaticFS embed.FS
