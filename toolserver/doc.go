// Package toolserver publishes tool definitions over the Model Context
// Protocol and consumes them again as tool.Tool values.
//
// The server side wraps an mcp-go MCPServer served over streamable HTTP.
// Structured results travel as embedded JSON resources, text results as
// text content. The Toolset on the client side reverses that mapping so a
// remote tool returns the same core.Result as its in-process counterpart.
package toolserver
