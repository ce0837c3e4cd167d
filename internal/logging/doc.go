// Package logging configures structured JSON logging for neodb.
//
// Logs go to stderr by default. With --debug or logging.file enabled they
// are also written to ~/.neodb/logs/neodb.log through a size-based
// rotating writer. The MCP stdio server logs to the file only, since
// stdout carries the protocol stream.
package logging
