package web

import "embed"

// StaticFS holds the embedded panel assets (HTML shell, CSS, panel JS).
//
//go:embed static/*
var StaticFS embed.FS
