package web

import "embed"

// Content holds the report template and the assets it links to.
//
//go:embed report.html.tmpl ephem.css ephem-dark.css sort.js
var Content embed.FS

// Assets are copied next to a written report.
var Assets = []string{"ephem.css", "ephem-dark.css", "sort.js"}
