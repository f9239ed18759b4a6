// Package web embeds the HTML report template and its assets
package web

import (
	"embed"
	_ "embed"
)

// CSS is inlined into the HTML report
//
//go:embed static/css/report.css
var CSS string

// JS filters the detailed table in the HTML report
//
//go:embed static/js/report.js
var JS string

//go:embed templates/*.html
var Templates embed.FS
