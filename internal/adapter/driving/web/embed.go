package web

import "embed"

// StaticFS holds the embedded static assets (dashboard stylesheet).
//
//go:embed static/*
var StaticFS embed.FS
