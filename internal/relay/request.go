package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Request は1回の転送操作を表す。転送の間だけ存在する一時的な値で、
// 保存や再試行は行わない。
type Request struct {
	// Method はHTTPメソッド。
	Method string
	// BaseURL は転送先サービスのベースURL（例: "http://rule-engine:8081"）。
	BaseURL string
	// Path はベースURLに連結するパス。スラッシュの正規化は行わないため、
	// 呼び出し側で一貫させること。
	Path string
	// Token はBearerトークン。空の場合はAuthorizationヘッダーを付与しない。
	Token string
	// Params はクエリパラメータ。同一キーの繰り返しを許容する。
	Params url.Values
	// Body はJSONとして送信するリクエストボディ。nilの場合はボディなし。
	Body any
}

// Forward はリクエストをマイクロサービスに転送して結果を返す。
// 試行は常に1回のみで、自動リトライは行わない（POST等の冪等性を仮定しない）。
//
// 成功レスポンス（ステータス400未満）はJSONとしてデコードした値を返す。
// ボディがJSONでない場合は map[string]any{"raw": <本文>} を返す。
// ステータス400以上は*UpstreamError、通信エラーは*UnavailableErrorを返す。
func Forward(ctx context.Context, pool *Pool, r Request) (any, error) {
	client, err := pool.Borrow()
	if err != nil {
		return nil, err
	}
	pool.enter()
	defer pool.leave()

	var bodyReader io.Reader
	if r.Body != nil {
		jsonBody, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	targetURL := r.BaseURL + r.Path
	if len(r.Params) > 0 {
		targetURL += "?" + r.Params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, targetURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("転送リクエストの作成に失敗: %w", err)
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &UnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnavailableError{Cause: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &UpstreamError{
			Status: resp.StatusCode,
			Detail: extractDetail(respBody),
		}
	}

	var result any
	if err := json.Unmarshal(respBody, &result); err != nil {
		// JSON以外の成功レスポンスは生テキストとして包んで返す
		return map[string]any{"raw": string(respBody)}, nil
	}
	return result, nil
}

// extractDetail はエラーレスポンスのボディから詳細メッセージを抽出する。
// 優先順位: detail → message → data.detail → 本文そのまま → 固定文言。
func extractDetail(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		if detail, ok := payload["detail"].(string); ok && detail != "" {
			return detail
		}
		if message, ok := payload["message"].(string); ok && message != "" {
			return message
		}
		if data, ok := payload["data"].(map[string]any); ok {
			if detail, ok := data["detail"].(string); ok && detail != "" {
				return detail
			}
		}
	}
	if len(body) > 0 {
		return string(body)
	}
	return "リモートサービスエラー"
}
