// Package web embeds the preview page.
package web

import _ "embed"

// IndexHTML is the preview page served at /.
//
//go:embed index.html
var IndexHTML []byte
