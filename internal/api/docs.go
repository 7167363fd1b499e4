package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// docsPage is the API reference shell. Stoplight Elements renders the
// OpenAPI document that huma serves at openAPIPlaceholder.
const docsPage = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Reference | ChartSync</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    body { margin: 0; height: 100vh; display: flex; flex-direction: column; background: #0d1117; }
    nav {
      flex: 0 0 40px;
      display: flex;
      align-items: center;
      gap: 20px;
      padding: 0 20px;
      background: #161b22;
      border-bottom: 1px solid #30363d;
      font: 500 13px -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
    }
    nav a { color: #58a6ff; text-decoration: none; }
    nav .brand { color: #e6edf3; font-weight: 600; }
    elements-api { flex: 1 1 auto; min-height: 0; }
  </style>
</head>
<body>
  <nav>
    <span class="brand">ChartSync</span>
    <a href="/docs/stream">Event stream</a>
    <a href="openAPIPlaceholder">OpenAPI JSON</a>
  </nav>
  <elements-api
    apiDescriptionUrl="openAPIPlaceholder"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`

const openAPIPlaceholder = "openAPIPlaceholder"

// mountDocs serves the API reference and the event stream guide. openAPIPath
// is huma's document path without extension.
func mountDocs(router chi.Router, openAPIPath string) {
	reference := strings.ReplaceAll(docsPage, openAPIPlaceholder, openAPIPath+".json")
	router.Get("/docs", htmlPage(reference))
	router.Get("/docs/stream", htmlPage(streamDocsHTML))
}

func htmlPage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write([]byte(body)); err != nil {
			slog.Debug("docs response write failed", "path", r.URL.Path, "error", err)
		}
	}
}
