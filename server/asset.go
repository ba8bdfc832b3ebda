package server

import (
	_ "embed"
)

//go:embed static/index.html
var indexHTML string

const manifestJSON = `{
  "name": "{{ .title }}",
  "short_name": "WebShell",
  "display": "standalone",
  "start_url": "./",
  "background_color": "#000000",
  "theme_color": "#000000"
}
`
