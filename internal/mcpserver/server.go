// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes raido's organization tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/filetree"
	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/organizer"
	"github.com/starford/raido/internal/store"
)

// localOwner scopes MCP-driven operations. Stdio transport has a single
// local user.
const localOwner = "local"

// RulesSource supplies the current organization rules text.
type RulesSource interface {
	Rules() string
}

// Server wraps the MCP server with raido tools.
type Server struct {
	mcp   *server.MCPServer
	org   *organizer.Service
	hist  *history.Service
	store store.EntityStore
	rules RulesSource
}

// New creates a new MCP server with all raido tools registered.
func New(org *organizer.Service, hist *history.Service, st store.EntityStore, rules RulesSource) *Server {
	s := &Server{org: org, hist: hist, store: st, rules: rules}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("organize_note",
		mcp.WithDescription("Run one auto-organization pass: route the content into the "+
			"existing file tree, merge it into each destination, and record revertible history. "+
			"Returns the created/updated report."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Freeform note content to organize")),
		mcp.WithString("title", mcp.Description("Optional title of the source note")),
	), s.organizeNote)

	s.mcp.AddTool(mcp.NewTool("suggest_destinations",
		mcp.WithDescription("Suggest ranked destination files for content without applying anything."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Content to classify")),
		mcp.WithString("title", mcp.Description("Optional title of the source note")),
	), s.suggestDestinations)

	s.mcp.AddTool(mcp.NewTool("get_file_tree",
		mcp.WithDescription("Return the current folder/file tree as an indented [DIR]/[FILE] listing."),
	), s.getFileTree)

	s.mcp.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List revertible organization history, newest first."),
	), s.listHistory)

	s.mcp.AddTool(mcp.NewTool("revert_change",
		mcp.WithDescription("Revert one recorded organization change by history item id. "+
			"Reverting a creation deletes the file; reverting an update restores the prior content."),
		mcp.WithString("id", mcp.Required(), mcp.Description("History item id")),
	), s.revertChange)

	// Resource: organization contract.
	s.mcp.AddResource(
		mcp.NewResource("raido://organize-contract", "Organization Contract",
			mcp.WithResourceDescription("How content is routed, merged, and made revertible."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) organizeNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title := ""
	if t, err := req.RequireString("title"); err == nil {
		title = t
	}

	rules := ""
	if s.rules != nil {
		rules = s.rules.Rules()
	}

	result, err := s.org.Organize(ctx, localOwner, title, content, rules)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) suggestDestinations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title := ""
	if t, err := req.RequireString("title"); err == nil {
		title = t
	}

	suggestions, err := s.org.Suggest(ctx, localOwner, title, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(suggestions, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getFileTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entities, err := s.store.ListEntities(localOwner)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	serialized := filetree.Serialize(filetree.Build(entities))
	if serialized == "" {
		return mcp.NewToolResultText("(empty tree)"), nil
	}
	return mcp.NewToolResultText(serialized), nil
}

func (s *Server) listHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.hist.List(localOwner)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	type item struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Action string `json:"action"`
		Path   string `json:"path"`
	}
	out := make([]item, len(items))
	for i, h := range items {
		out[i] = item{ID: h.ID, Title: h.Title, Action: h.Action, Path: h.Path}
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) revertChange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outcome, err := s.hist.Revert(localOwner, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", outcome.Kind, outcome.Title)), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://organize-contract",
			MIMEType: "text/markdown",
			Text:     OrganizeContract,
		},
	}, nil
}
