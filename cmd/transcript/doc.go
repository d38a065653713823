// Command transcript fetches YouTube transcripts from the command line using
// the same acquisition pipeline, cache and history as the MCP server.
//
//	transcript get https://youtu.be/dQw4w9WgXcQ
//	transcript batch urls.txt --concurrency 4
//	transcript history --limit 10
package main
