package annotator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/mhl/highlight"
)

var testMCPImpl = &mcp.Implementation{Name: "mhl-test", Version: "0.1.0"}

func mcpSession(t *testing.T, a *Annotator) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	a.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, result.IsError
}

func mustCall(t *testing.T, session *mcp.ClientSession, name string, args any, v any) {
	t.Helper()
	text, isErr := callTool(t, session, name, args)
	if isErr {
		t.Fatalf("CallTool(%s) tool error: %s", name, text)
	}
	if v == nil {
		return
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("CallTool(%s): decode %q: %v", name, text, err)
	}
}

func TestMCP_Tools(t *testing.T) {
	a := newTestAnnotator(t, testConfig(t))
	defer a.Close()
	session := mcpSession(t, a)

	var info PageInfo
	mustCall(t, session, "mhl_load_page", map[string]any{"page_id": "p1", "html": testPage}, &info)
	if info.ID != "p1" {
		t.Errorf("load: %+v", info)
	}

	var draft highlight.Draft
	mustCall(t, session, "mhl_select", map[string]any{"page_id": "p1", "quote": "paragraph"}, &draft)
	if len(draft.Text) != 1 || draft.Text[0] != "paragraph" {
		t.Fatalf("select: %+v", draft)
	}

	var h1, h2 highlight.Highlight
	mustCall(t, session, "mhl_create", map[string]any{"page_id": "p1", "draft": draft, "color": "yellow"}, &h1)
	mustCall(t, session, "mhl_create", map[string]any{"page_id": "p1", "quote": "new", "color": "purple"}, &h2)
	if h1.ID != highlight.RemoteID("hl_1") || h2.Color != highlight.Purple {
		t.Errorf("created: %+v %+v", h1, h2)
	}

	var list []highlight.Highlight
	mustCall(t, session, "mhl_list", map[string]any{"page_id": "p1"}, &list)
	if len(list) != 2 || list[0].ID != h1.ID || list[1].ID != h2.ID {
		t.Errorf("list: %+v", list)
	}

	mustCall(t, session, "mhl_edit", map[string]any{"page_id": "p1", "id": h1.ID.String(), "color": "green"}, nil)
	var hidden highlight.Highlight
	mustCall(t, session, "mhl_set_visible", map[string]any{"page_id": "p1", "id": h2.ID.String(), "visible": false}, &hidden)
	if !hidden.Hidden {
		t.Error("set_visible: not hidden")
	}

	var exp exportResponse
	mustCall(t, session, "mhl_export", map[string]any{"page_id": "p1"}, &exp)
	if !strings.Contains(exp.Markdown, "Second ==paragraph== here") || strings.Contains(exp.Markdown, "==new==") {
		t.Errorf("markdown:\n%s", exp.Markdown)
	}
	if exp.Quotes != "- (green) \"paragraph\"\n" {
		t.Errorf("quotes: %q", exp.Quotes)
	}

	mustCall(t, session, "mhl_remove", map[string]any{"page_id": "p1", "id": h2.ID.String()}, nil)
	if text, isErr := callTool(t, session, "mhl_remove", map[string]any{"page_id": "p1", "id": h2.ID.String()}); !isErr {
		t.Errorf("second remove: want tool error, got %s", text)
	}
}

func TestMCP_Errors(t *testing.T) {
	a := newTestAnnotator(t, testConfig(t))
	defer a.Close()
	session := mcpSession(t, a)

	cases := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"unknown page", "mhl_list", map[string]any{"page_id": "nope"}},
		{"no draft", "mhl_create", map[string]any{"page_id": "nope", "color": "blue"}},
		{"export unknown page", "mhl_export", map[string]any{"page_id": "nope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if text, isErr := callTool(t, session, tc.tool, tc.args); !isErr {
				t.Errorf("want tool error, got %s", text)
			}
		})
	}
}
