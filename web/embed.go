// Package web embeds the report page and its assets.
package web

import "embed"

// TemplatesFS holds the server-rendered HTML templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the scripts and styles served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
