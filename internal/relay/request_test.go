package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"
	"time"
)

// newTestPool はテスト用のプールを生成し、テスト終了時にクローズする。
func newTestPool(t *testing.T) *Pool {
	t.Helper()

	pool := NewPool()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Close(ctx)
	})
	return pool
}

// TestForward はリクエスト転送の成功パスを検証する。
func TestForward(t *testing.T) {
	t.Parallel()

	t.Run("ステータス200のJSONレスポンスをそのまま返すこと", func(t *testing.T) {
		t.Parallel()

		var gotAuth string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok": true}`))
		}))
		defer ts.Close()

		result, err := Forward(context.Background(), newTestPool(t), Request{
			Method:  http.MethodGet,
			BaseURL: ts.URL,
			Path:    "/api/v1/user/1",
			Token:   "access-token-xyz",
		})
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}

		want := map[string]any{"ok": true}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("Forward() = %v, want %v", result, want)
		}
		if gotAuth != "Bearer access-token-xyz" {
			t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer access-token-xyz")
		}
	})

	t.Run("トークンが空の場合はAuthorizationヘッダーを付与しないこと", func(t *testing.T) {
		t.Parallel()

		var gotAuth string
		var hasAuth bool
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			_, hasAuth = r.Header["Authorization"]
			w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		if _, err := Forward(context.Background(), newTestPool(t), Request{
			Method:  http.MethodGet,
			BaseURL: ts.URL,
			Path:    "/public",
		}); err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}
		if hasAuth {
			t.Errorf("Authorizationヘッダーが付与されている: %q", gotAuth)
		}
	})

	t.Run("JSONボディとクエリパラメータが転送されること", func(t *testing.T) {
		t.Parallel()

		var gotBody []byte
		var gotQuery url.Values
		var gotContentType string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotQuery = r.URL.Query()
			gotContentType = r.Header.Get("Content-Type")
			w.Write([]byte(`{"created": true}`))
		}))
		defer ts.Close()

		params := url.Values{}
		params.Add("item_ids", "1")
		params.Add("item_ids", "2")
		params.Set("limit", "20")

		_, err := Forward(context.Background(), newTestPool(t), Request{
			Method:  http.MethodPost,
			BaseURL: ts.URL,
			Path:    "/api/v1/items",
			Token:   "tok",
			Params:  params,
			Body:    map[string]string{"name": "ポーション"},
		})
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}

		var decoded map[string]string
		if err := json.Unmarshal(gotBody, &decoded); err != nil {
			t.Fatalf("転送されたボディのデコードに失敗: %v", err)
		}
		if decoded["name"] != "ポーション" {
			t.Errorf("body.name = %q, want %q", decoded["name"], "ポーション")
		}
		if gotContentType != "application/json" {
			t.Errorf("Content-Type = %q, want %q", gotContentType, "application/json")
		}
		if got := gotQuery["item_ids"]; len(got) != 2 || got[0] != "1" || got[1] != "2" {
			t.Errorf("item_ids = %v, want [1 2]", got)
		}
		if gotQuery.Get("limit") != "20" {
			t.Errorf("limit = %q, want %q", gotQuery.Get("limit"), "20")
		}
	})

	t.Run("JSONでない成功レスポンスをrawとして包んで返すこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("plain text response"))
		}))
		defer ts.Close()

		result, err := Forward(context.Background(), newTestPool(t), Request{
			Method:  http.MethodGet,
			BaseURL: ts.URL,
			Path:    "/text",
		})
		if err != nil {
			t.Fatalf("Forward()でエラーが発生: %v", err)
		}

		want := map[string]any{"raw": "plain text response"}
		if !reflect.DeepEqual(result, want) {
			t.Errorf("Forward() = %v, want %v", result, want)
		}
	})
}

// TestForwardUpstreamError はエラーレスポンスの変換を検証する。
func TestForwardUpstreamError(t *testing.T) {
	t.Parallel()

	t.Run("ステータス422のdetailフィールドを抽出すること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"detail": "invalid payload"}`))
		}))
		defer ts.Close()

		_, err := Forward(context.Background(), newTestPool(t), Request{
			Method:  http.MethodPost,
			BaseURL: ts.URL,
			Path:    "/api",
		})

		var upErr *UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("Forward() error = %v, want *UpstreamError", err)
		}
		if upErr.Status != http.StatusUnprocessableEntity {
			t.Errorf("Status = %d, want %d", upErr.Status, http.StatusUnprocessableEntity)
		}
		if upErr.Detail != "invalid payload" {
			t.Errorf("Detail = %q, want %q", upErr.Detail, "invalid payload")
		}
	})

	t.Run("detailが無い場合はmessageフィールドを抽出すること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message": "something broke"}`))
		}))
		defer ts.Close()

		_, err := Forward(context.Background(), newTestPool(t), Request{
			Method:  http.MethodGet,
			BaseURL: ts.URL,
			Path:    "/api",
		})

		var upErr *UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("Forward() error = %v, want *UpstreamError", err)
		}
		if upErr.Detail != "something broke" {
			t.Errorf("Detail = %q, want %q", upErr.Detail, "something broke")
		}
	})

	t.Run("ネストされたdata.detailを抽出すること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"data": {"detail": "nested detail"}}`))
		}))
		defer ts.Close()

		_, err := Forward(context.Background(), newTestPool(t), Request{
			Method:  http.MethodGet,
			BaseURL: ts.URL,
			Path:    "/api",
		})

		var upErr *UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("Forward() error = %v, want *UpstreamError", err)
		}
		if upErr.Detail != "nested detail" {
			t.Errorf("Detail = %q, want %q", upErr.Detail, "nested detail")
		}
	})

	t.Run("JSONでないエラーボディは本文そのままをdetailにすること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("bad gateway"))
		}))
		defer ts.Close()

		_, err := Forward(context.Background(), newTestPool(t), Request{
			Method:  http.MethodGet,
			BaseURL: ts.URL,
			Path:    "/api",
		})

		var upErr *UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("Forward() error = %v, want *UpstreamError", err)
		}
		if upErr.Detail != "bad gateway" {
			t.Errorf("Detail = %q, want %q", upErr.Detail, "bad gateway")
		}
	})

	t.Run("空のエラーボディは固定文言をdetailにすること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		_, err := Forward(context.Background(), newTestPool(t), Request{
			Method:  http.MethodGet,
			BaseURL: ts.URL,
			Path:    "/api",
		})

		var upErr *UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("Forward() error = %v, want *UpstreamError", err)
		}
		if upErr.Detail != "リモートサービスエラー" {
			t.Errorf("Detail = %q, want 固定文言", upErr.Detail)
		}
	})
}

// TestForwardUnavailable は通信エラーの変換を検証する。
func TestForwardUnavailable(t *testing.T) {
	t.Parallel()

	t.Run("接続不能なホストは*UnavailableErrorを返すこと", func(t *testing.T) {
		t.Parallel()

		// クローズ済みのテストサーバーで接続拒否を再現する
		ts := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		unreachable := ts.URL
		ts.Close()

		_, err := Forward(context.Background(), newTestPool(t), Request{
			Method:  http.MethodGet,
			BaseURL: unreachable,
			Path:    "/api",
		})

		var unavailable *UnavailableError
		if !errors.As(err, &unavailable) {
			t.Fatalf("Forward() error = %v, want *UnavailableError", err)
		}
		if unavailable.Cause == nil {
			t.Error("Causeがnil")
		}
	})

	t.Run("クローズ済みプールはErrPoolClosedを返すこと", func(t *testing.T) {
		t.Parallel()

		pool := NewPool()
		if err := pool.Close(context.Background()); err != nil {
			t.Fatalf("Close()でエラーが発生: %v", err)
		}

		_, err := Forward(context.Background(), pool, Request{
			Method:  http.MethodGet,
			BaseURL: "http://localhost:1",
			Path:    "/api",
		})
		if !errors.Is(err, ErrPoolClosed) {
			t.Errorf("Forward() error = %v, want ErrPoolClosed", err)
		}
	})
}
