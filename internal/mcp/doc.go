// Package mcp implements the Model Context Protocol (MCP) server for
// documentation search.
//
// The server exposes four tools to AI assistants:
//   - query_docs: search the indexed documentation (semantic, keyword, or hybrid)
//   - get_chunk: fetch the full content of one chunk by ID
//   - refresh_docs: rebuild the index from its sources and swap it in
//   - get_refresh_status: report the last refresh outcome
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout is reserved for the protocol; all logging goes to stderr.
//
// # Tool: query_docs
//
//	Request:
//	{
//	  "name": "query_docs",
//	  "arguments": {
//	    "query": "how do I configure the scheduler",
//	    "limit": 5,
//	    "query_type": "hybrid",
//	    "min_score": 0.2
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "chunk": {
//	        "id": "7f8d7e4c-...",
//	        "content": "...",
//	        "source_file": "docs/scheduler.md",
//	        "section_heading": "Configuration (+2 more)",
//	        "position": 3
//	      },
//	      "score": 0.031,
//	      "rank": 1,
//	      "match_type": "hybrid"
//	    }
//	  ],
//	  "total_count": 1,
//	  "query_text": "how do I configure the scheduler",
//	  "query_type": "hybrid",
//	  "execution_ms": 12
//	}
//
// # Tool: get_chunk
//
//	Request:
//	{
//	  "name": "get_chunk",
//	  "arguments": {"chunk_id": "7f8d7e4c-..."}
//	}
//
// The response is the full chunk record as JSON.
//
// # Error Handling
//
// Errors are standard JSON-RPC error responses. Codes:
//   - -32602: invalid params (missing query, bad limit, non-UUID chunk_id)
//   - -32603: internal error (search or storage failure)
//   - -32001: documentation database not built yet
//   - -32002: chunk not found
//   - -32003: a refresh is already in progress
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "docfind": {
//	      "command": "/usr/local/bin/docfind",
//	      "args": ["serve"]
//	    }
//	  }
//	}
package mcp
