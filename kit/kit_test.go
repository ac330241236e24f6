package kit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "endpoint", "b_after", "a_after"}
	if strings.Join(order, ",") != strings.Join(expected, ",") {
		t.Fatalf("order: got %v, want %v", order, expected)
	}
}

func TestLogging_UsesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	reqLog := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	errFail := errors.New("fail")

	ep := Logging("mhl_remove", nil)(func(context.Context, any) (any, error) {
		return nil, errFail
	})
	ctx := WithLogger(WithTransport(context.Background(), "mcp"), reqLog)
	if _, err := ep(ctx, nil); !errors.Is(err, errFail) {
		t.Fatalf("error: got %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"op":"mhl_remove"`, `"transport":"mcp"`, `"error":"fail"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %s: %s", want, out)
		}
	}
}

func TestContext_Defaults(t *testing.T) {
	ctx := context.Background()
	if v := GetTransport(ctx); v != "http" {
		t.Errorf("default transport: got %q", v)
	}
	if v := GetTraceID(ctx); v != "" {
		t.Errorf("trace id: got %q", v)
	}
	if Logger(ctx, nil) != slog.Default() {
		t.Error("Logger: want slog.Default")
	}

	ctx = WithPageID(WithTraceID(ctx, "trc_1"), "page-a")
	if GetTraceID(ctx) != "trc_1" || GetPageID(ctx) != "page-a" {
		t.Errorf("values: %q %q", GetTraceID(ctx), GetPageID(ctx))
	}
}
