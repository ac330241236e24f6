package annotator

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/mhl/highlight"
	"github.com/hazyhaar/mhl/kit"
)

// RegisterMCP registers the annotator tools on an MCP server.
func (a *Annotator) RegisterMCP(srv *mcp.Server) {
	a.registerLoadPageTool(srv)
	a.registerSelectTool(srv)
	a.registerCreateTool(srv)
	a.registerListTool(srv)
	a.registerEditTool(srv)
	a.registerSetVisibleTool(srv)
	a.registerRemoveTool(srv)
	a.registerExportTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (a *Annotator) tool(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	kit.RegisterMCPTool(srv, tool, kit.Logging(tool.Name, a.logger)(endpoint), decode)
}

var (
	pageIDProp = map[string]any{"type": "string", "description": "Page identifier"}
	idProp     = map[string]any{"type": "string", "description": "Highlight id"}
	colorProp  = map[string]any{"type": "string", "enum": colorEnum(), "description": "Highlight color"}
	pointProp  = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":   map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
			"offset": map[string]any{"type": "integer"},
		},
		"description": "Child index path from <html> to a node, markers included, and an offset in it",
	}
)

func colorEnum() []any {
	out := make([]any, len(highlight.Colors))
	for i, c := range highlight.Colors {
		out[i] = string(c)
	}
	return out
}

// pageArg carries the page id of every tool request.
type pageArg struct {
	PageID string `json:"page_id"`
}

func (p pageArg) Page() string { return p.PageID }

// --- load_page ---

type loadPageRequest struct {
	pageArg
	HTML string `json:"html"`
}

func (a *Annotator) registerLoadPageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mhl_load_page",
		Description: "Load (or replace) an HTML page. Highlights already stored for the page are redrawn on the new markup.",
		InputSchema: inputSchema(map[string]any{
			"page_id": pageIDProp,
			"html":    map[string]any{"type": "string", "description": "Full page markup"},
		}, []string{"page_id", "html"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*loadPageRequest)
		return a.LoadPage(ctx, r.PageID, r.HTML)
	}
	a.tool(srv, tool, endpoint, kit.DecodeArgs[loadPageRequest]())
}

// --- select ---

type selectRequest struct {
	pageArg
	SelectRequest
}

func (a *Annotator) registerSelectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mhl_select",
		Description: "Turn a selection into a highlight draft. Select by quote (n-th occurrence of a text) or by anchor/focus DOM points.",
		InputSchema: inputSchema(map[string]any{
			"page_id":    pageIDProp,
			"quote":      map[string]any{"type": "string", "description": "Text to select"},
			"occurrence": map[string]any{"type": "integer", "description": "0-based occurrence of quote (default 0)"},
			"anchor":     pointProp,
			"focus":      pointProp,
		}, []string{"page_id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*selectRequest)
		return a.Select(ctx, r.PageID, r.SelectRequest)
	}
	a.tool(srv, tool, endpoint, kit.DecodeArgs[selectRequest]())
}

// --- create ---

type createRequest struct {
	pageArg
	Draft      *highlight.Draft `json:"draft,omitempty"`
	Quote      string           `json:"quote,omitempty"`
	Occurrence int              `json:"occurrence,omitempty"`
	Color      highlight.Color  `json:"color"`
}

func (a *Annotator) registerCreateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mhl_create",
		Description: "Create a highlight from a draft returned by mhl_select, or directly from a quote.",
		InputSchema: inputSchema(map[string]any{
			"page_id":    pageIDProp,
			"draft":      map[string]any{"type": "object", "description": "Draft returned by mhl_select"},
			"quote":      map[string]any{"type": "string", "description": "Text to highlight when no draft is given"},
			"occurrence": map[string]any{"type": "integer", "description": "0-based occurrence of quote (default 0)"},
			"color":      colorProp,
		}, []string{"page_id", "color"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*createRequest)
		d := r.Draft
		if d == nil {
			if r.Quote == "" {
				return nil, fmt.Errorf("draft or quote required")
			}
			var err error
			d, err = a.Select(ctx, r.PageID, SelectRequest{Quote: r.Quote, Occurrence: r.Occurrence})
			if err != nil {
				return nil, err
			}
		}
		return a.Create(ctx, r.PageID, *d, r.Color)
	}
	a.tool(srv, tool, endpoint, kit.DecodeArgs[createRequest]())
}

// --- list ---

func (a *Annotator) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mhl_list",
		Description: "List the highlights of a page in order.",
		InputSchema: inputSchema(map[string]any{"page_id": pageIDProp}, []string{"page_id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		return a.Highlights(ctx, req.(*pageArg).PageID)
	}
	a.tool(srv, tool, endpoint, kit.DecodeArgs[pageArg]())
}

// --- edit ---

type editRequest struct {
	pageArg
	ID    string          `json:"id"`
	Color highlight.Color `json:"color"`
}

func (a *Annotator) registerEditTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mhl_edit",
		Description: "Change the color of a highlight.",
		InputSchema: inputSchema(map[string]any{
			"page_id": pageIDProp,
			"id":      idProp,
			"color":   colorProp,
		}, []string{"page_id", "id", "color"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*editRequest)
		return a.Edit(ctx, r.PageID, ParseID(r.ID), r.Color)
	}
	a.tool(srv, tool, endpoint, kit.DecodeArgs[editRequest]())
}

// --- set_visible ---

type setVisibleRequest struct {
	pageArg
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
}

func (a *Annotator) registerSetVisibleTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mhl_set_visible",
		Description: "Show or hide a highlight without deleting it.",
		InputSchema: inputSchema(map[string]any{
			"page_id": pageIDProp,
			"id":      idProp,
			"visible": map[string]any{"type": "boolean"},
		}, []string{"page_id", "id", "visible"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*setVisibleRequest)
		return a.SetVisible(ctx, r.PageID, ParseID(r.ID), r.Visible)
	}
	a.tool(srv, tool, endpoint, kit.DecodeArgs[setVisibleRequest]())
}

// --- remove ---

type removeRequest struct {
	pageArg
	ID string `json:"id"`
}

func (a *Annotator) registerRemoveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mhl_remove",
		Description: "Delete a highlight.",
		InputSchema: inputSchema(map[string]any{
			"page_id": pageIDProp,
			"id":      idProp,
		}, []string{"page_id", "id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*removeRequest)
		if err := a.Remove(ctx, r.PageID, ParseID(r.ID)); err != nil {
			return nil, err
		}
		return map[string]any{"removed": r.ID}, nil
	}
	a.tool(srv, tool, endpoint, kit.DecodeArgs[removeRequest]())
}

// --- export ---

type exportRequest struct {
	pageArg
	Domain string `json:"domain,omitempty"`
}

type exportResponse struct {
	Markdown string `json:"markdown"`
	Quotes   string `json:"quotes"`
}

func (a *Annotator) registerExportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mhl_export",
		Description: "Export a page as Markdown with highlighted text marked ==like this==, plus a list of the visible quotes.",
		InputSchema: inputSchema(map[string]any{
			"page_id": pageIDProp,
			"domain":  map[string]any{"type": "string", "description": "Domain used to resolve relative links"},
		}, []string{"page_id"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*exportRequest)
		md, quotes, err := a.Export(ctx, r.PageID, r.Domain)
		if err != nil {
			return nil, err
		}
		return exportResponse{Markdown: md, Quotes: quotes}, nil
	}
	a.tool(srv, tool, endpoint, kit.DecodeArgs[exportRequest]())
}
