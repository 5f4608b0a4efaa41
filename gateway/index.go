package gateway

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>TestAgent API</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; }
        .endpoint { background: #f5f5f5; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
        .method { font-weight: bold; color: #0366d6; }
        .path { font-family: monospace; }
        .description { margin: 10px 0; }
    </style>
</head>
<body>
    <h1>TestAgent API</h1>
    <p>Welcome to the TestAgent API. This service provides advanced math capabilities through an AI assistant.</p>

    <div class="endpoint">
        <div class="method">POST</div>
        <div class="path">/v1/chat</div>
        <div class="description">Chat with the TestAgent. Send {"session_id": "...", "message": "..."}; add ?format=yaml or ?format=toml for a transcript.</div>
    </div>

    <div class="endpoint">
        <div class="method">GET</div>
        <div class="path">/v1/chats</div>
        <div class="description">List the saved sessions. GET or DELETE /v1/chats/{session_id} for one session.</div>
    </div>

    <div class="endpoint">
        <div class="method">POST</div>
        <div class="path">/mcp</div>
        <div class="description">JSON-RPC tool server hosting math_tools.</div>
    </div>

    <div class="endpoint">
        <div class="method">GET</div>
        <div class="path">/health</div>
        <div class="description">Check if the service is running.</div>
    </div>

    <h2>Example Queries</h2>
    <ul>
        <li>"What is 123 * 456?"</li>
        <li>"Solve for x: 2x + 5 = 15"</li>
        <li>"What is the square root of 144?"</li>
        <li>"Calculate (5 + 3) * 2 - 10 / 2"</li>
    </ul>
</body>
</html>
`
