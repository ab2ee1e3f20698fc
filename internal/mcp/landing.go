package mcp

import "net/http"

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>KB Miner</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #f8fafc; color: #0f172a; margin: 0; padding: 3rem 1rem; }
  main { max-width: 640px; margin: 0 auto; }
  h1 { font-size: 1.6rem; margin-bottom: 0.25rem; }
  p.lead { color: #475569; margin-top: 0; }
  h2 { font-size: 0.8rem; text-transform: uppercase; letter-spacing: 0.08em; color: #64748b; margin-top: 2rem; }
  code, pre { font-family: Menlo, Consolas, monospace; font-size: 0.9rem; }
  pre { background: #0f172a; color: #e2e8f0; padding: 1rem; border-radius: 6px; overflow-x: auto; }
  li { margin-bottom: 0.35rem; }
</style>
</head>
<body>
<main>
  <h1>KB Miner</h1>
  <p class="lead">Question answering over PDFs ingested per job, via the Model Context Protocol.</p>

  <h2>Tools</h2>
  <ul>
    <li><code>ask_documents</code> chat with a job's documents</li>
    <li><code>search_chunks</code> semantic search over extracted chunks</li>
    <li><code>submit_feedback</code> like or dislike an answer</li>
    <li><code>get_token_balance</code> remaining tokens for a user</li>
  </ul>

  <h2>Endpoints</h2>
  <ul>
    <li><a href="/mcp"><code>/mcp</code></a> MCP Streamable HTTP</li>
    <li><a href="/health"><code>/health</code></a> health check</li>
  </ul>

  <h2>Connect</h2>
  <pre>{"mcpServers": {"kbminer": {"url": "http://localhost:8080/mcp"}}}</pre>
</main>
</body>
</html>`

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(landingHTML))
	}
}
