package api

const streamDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Event Stream | ChartSync</title>
  <style>
    *, *::before, *::after { box-sizing: border-box; }
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", sans-serif;
      font-size: 14px;
      line-height: 1.65;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    nav {
      background: #161b22;
      border-bottom: 1px solid #30363d;
      padding: 0 24px;
      height: 48px;
      display: flex;
      align-items: center;
      gap: 24px;
    }
    nav .brand { font-weight: 600; font-size: 15px; color: #e6edf3; }
    main { max-width: 900px; margin: 0 auto; padding: 32px 16px 64px; }
    h1 { margin: 0 0 8px; font-size: 28px; font-weight: 600; color: #e6edf3; }
    h2 {
      margin: 40px 0 12px;
      font-size: 18px;
      font-weight: 600;
      color: #e6edf3;
      padding-bottom: 8px;
      border-bottom: 1px solid #21262d;
    }
    table { width: 100%; border-collapse: collapse; margin: 0 0 20px; font-size: 13px; }
    th, td { text-align: left; padding: 8px 12px; border: 1px solid #30363d; }
    th { background: #161b22; color: #e6edf3; }
    code {
      font-family: "SFMono-Regular", Consolas, "Liberation Mono", Menlo, monospace;
      font-size: 12px;
      background: #161b22;
      border-radius: 4px;
      padding: 2px 6px;
    }
    pre {
      background: #161b22;
      border: 1px solid #30363d;
      border-radius: 6px;
      padding: 16px;
      overflow-x: auto;
    }
    pre code { background: none; padding: 0; }
  </style>
</head>
<body>
  <nav>
    <span class="brand">ChartSync</span>
    <a href="/docs">&larr; API Reference</a>
  </nav>
  <main>
    <h1>Event Stream</h1>
    <p>The event stream exposes the selection bus to external participants.
    Every event a chart emits is forwarded to connected clients, and WebSocket
    clients may publish events of their own.</p>

    <h2 id="endpoints">Endpoints</h2>
    <table>
      <tr><th>Path</th><th>Transport</th><th>Direction</th></tr>
      <tr><td><code>GET /api/v1/events/ws</code></td><td>WebSocket</td><td>both</td></tr>
      <tr><td><code>GET /api/v1/events/sse</code></td><td>Server-Sent Events</td><td>server to client</td></tr>
    </table>
    <p>Both accept <code>?keys=3_12,7_1</code> to restrict delivery to a set of
    identity keys. Events without a key, such as <code>UpdateDSEvent</code>,
    always pass the filter.</p>

    <h2 id="events">Events</h2>
    <table>
      <tr><th>event</th><th>Payload</th><th>Inbound</th></tr>
      <tr><td><code>ElementChangedEvent</code></td><td><code>key</code>, <code>element</code></td><td>no</td></tr>
      <tr><td><code>UpdateElementEvent</code></td><td><code>element</code></td><td>yes</td></tr>
      <tr><td><code>UpdateDSEvent</code></td><td><code>data_source</code></td><td>yes</td></tr>
      <tr><td><code>GainedFocusEvent</code></td><td><code>key</code> (optional)</td><td>yes</td></tr>
    </table>
    <p>A selection value is either an array of category labels or a range
    object <code>{"min": 4, "max": 25, "mode": "include"}</code>.</p>
<pre><code>{"event":"ElementChangedEvent","key":"3_12","element":{"name":"3_12","value":["F"]}}
{"event":"UpdateDSEvent","data_source":{"3_12":["M"],"7_1":{"min":2,"max":8,"mode":"exclude"}}}</code></pre>

    <h2 id="examples">Examples</h2>
<pre><code>const ws = new WebSocket("ws://localhost:8190/api/v1/events/ws?keys=3_12");
ws.onmessage = (m) =&gt; console.log(JSON.parse(m.data));
ws.send(JSON.stringify({event: "UpdateElementEvent", element: {name: "3_12", value: ["F"]}}));</code></pre>
<pre><code>curl -N http://localhost:8190/api/v1/events/sse</code></pre>

    <h2 id="notes">Notes</h2>
    <p>Each client has a queue of 256 events. When a client falls behind,
    further events are dropped for that client only. An event published by a
    client is never sent back to it. Rejected inbound events are answered with
    <code>{"error": "..."}</code>.</p>
  </main>
</body>
</html>`
