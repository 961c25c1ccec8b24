package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/agevault/internal/models"
	"github.com/starford/agevault/internal/pipelineservice"
	"github.com/starford/agevault/internal/testutil"
)

type keyFlag bool

func (k keyFlag) Exists() bool { return bool(k) }

func testServer(t *testing.T) (*Server, models.Layout) {
	t.Helper()

	layout, store := testutil.TestLayout(t)
	db := testutil.TestJournal(t)
	_ = db.Record(models.Outcome{TickID: "t1", Op: models.OpEncrypt, Source: "diary.txt", Output: "diary.txt.age", Status: models.StatusOK})

	svc := pipelineservice.NewService(store, layout, keyFlag(false), pipelineservice.WithLedger(db))
	return New(svc, "test"), layout
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so dispatch to the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "pipeline_status":
		result, err = srv.pipelineStatus(ctx, req)
	case "list_stage":
		result, err = srv.listStage(ctx, req)
	case "recent_activity":
		result, err = srv.recentActivity(ctx, req)
	case "get_pipeline_contract":
		result, err = srv.getPipelineContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestPipelineStatus(t *testing.T) {
	srv, layout := testServer(t)
	testutil.WriteFile(t, layout.Decrypt, "x.txt.age", []byte("c"))

	text := resultText(callTool(t, srv, "pipeline_status", nil))
	for _, want := range []string{`"key_present": false`, `"stage": "decrypt"`, `"files": 1`} {
		if !strings.Contains(text, want) {
			t.Errorf("status missing %q:\n%s", want, text)
		}
	}
}

func TestListStage(t *testing.T) {
	srv, layout := testServer(t)
	testutil.WriteFile(t, layout.Local, "a.txt", []byte("a"))
	testutil.WriteFile(t, layout.Local, "b.txt", []byte("b"))

	text := resultText(callTool(t, srv, "list_stage", map[string]interface{}{"stage": "Local"}))
	if text != "a.txt\nb.txt" {
		t.Errorf("list = %q", text)
	}
}

func TestListStageEmpty(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "list_stage", map[string]interface{}{"stage": "vault"}))
	if text != "no files" {
		t.Errorf("list = %q", text)
	}
}

func TestListStageUnknown(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_stage", map[string]interface{}{"stage": "attic"})
	if !r.IsError {
		t.Error("expected error for unknown stage")
	}
}

func TestListStageMissingArg(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_stage", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error when stage is missing")
	}
}

func TestRecentActivity(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "recent_activity", map[string]interface{}{"limit": 5}))
	if !strings.Contains(text, "diary.txt.age") {
		t.Errorf("activity = %q", text)
	}
}

func TestGetPipelineContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_pipeline_contract", nil))
	if !strings.Contains(text, "1. Encrypt") {
		t.Errorf("contract missing folder table")
	}
}
