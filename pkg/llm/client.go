// Package llm 提供 Gemini 生成式语言接口的客户端。
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"kkx-toolkit-go/internal/config"
	"kkx-toolkit-go/pkg/log"
	"kkx-toolkit-go/pkg/retry"
	"net/http"
	"strings"
	"time"
)

// ErrMissingAPIKey 在未配置 API Key 时返回，不会发出任何请求。
var ErrMissingAPIKey = errors.New("llm: api key not configured")

// ErrBlocked 表示服务端出于安全策略中止了响应。
var ErrBlocked = errors.New("llm: response blocked by safety filters")

// Client 定义了 LLM 客户端的接口。
type Client interface {
	// Generate 发送一次非流式请求，返回完整文本与检索来源链接。
	Generate(ctx context.Context, req Request) (*Response, error)
	// StreamGenerate 打开一个流式请求，逐片段返回增量文本。
	StreamGenerate(ctx context.Context, req Request) (*Stream, error)
}

// Request 描述一次生成请求。
type Request struct {
	Prompt            string
	SystemInstruction string
	Temperature       *float64
	// Grounding 打开提供方自带的网页检索，返回值中附带来源链接。
	Grounding bool
}

// Response 是非流式请求的结果。
type Response struct {
	Text          string
	GroundingURLs []string
}

// APIError 携带服务端返回的非 200 状态码与响应体。
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini api returned status %d: %s", e.Status, e.Body)
}

// StatusCode 供 retry 判断是否可重试。
func (e *APIError) StatusCode() int {
	return e.Status
}

type geminiClient struct {
	cfg       config.LLMConfig
	client    *http.Client
	retryOpts []retry.Option
}

// NewClient 创建一个 Gemini 客户端，retryOpts 作用于每次请求的建立阶段。
func NewClient(cfg config.LLMConfig, retryOpts ...retry.Option) Client {
	httpClient := &http.Client{}
	if cfg.TimeoutSeconds > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &geminiClient{
		cfg:       cfg,
		client:    httpClient,
		retryOpts: retryOpts,
	}
}

// Float64 返回 v 的指针，用于填写 Request.Temperature。
func Float64(v float64) *float64 {
	return &v
}

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type googleSearch struct{}

type tool struct {
	GoogleSearch *googleSearch `json:"google_search,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             []tool            `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content           content `json:"content"`
		FinishReason      string  `json:"finishReason"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func (r *generateResponse) groundingURLs() []string {
	if len(r.Candidates) == 0 || r.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var urls []string
	for _, chunk := range r.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk.Web != nil && chunk.Web.URI != "" {
			urls = append(urls, chunk.Web.URI)
		}
	}
	return urls
}

func (r *generateResponse) blocked() bool {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return true
	}
	return len(r.Candidates) > 0 && r.Candidates[0].FinishReason == "SAFETY"
}

func (c *geminiClient) buildRequest(req Request) generateRequest {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	}
	if req.SystemInstruction != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemInstruction}}}
	}
	if req.Temperature != nil {
		body.GenerationConfig = &generationConfig{Temperature: req.Temperature}
	}
	if req.Grounding {
		body.Tools = []tool{{GoogleSearch: &googleSearch{}}}
	}
	return body
}

// post 发送请求并在非 200 时返回 *APIError，成功时调用方负责关闭 Body。
func (c *geminiClient) post(ctx context.Context, url string, body []byte, stream bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call gemini api: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Body: string(bodyBytes)}
	}
	return resp, nil
}

// Generate 调用 models/{model}:generateContent。
func (c *geminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	reqBytes, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)

	return retry.Do(ctx, func(ctx context.Context) (*Response, error) {
		resp, err := c.post(ctx, url, reqBytes, false)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		var out generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode gemini response: %w", err)
		}
		if out.blocked() {
			return nil, ErrBlocked
		}
		return &Response{Text: out.text(), GroundingURLs: out.groundingURLs()}, nil
	}, c.retryOpts...)
}

// StreamGenerate 以 SSE 方式调用 models/{model}:streamGenerateContent。
// 只有建立连接的阶段会重试，流中途的错误通过 Stream.Recv 返回。
func (c *geminiClient) StreamGenerate(ctx context.Context, req Request) (*Stream, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	reqBytes, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.cfg.BaseURL, c.cfg.Model)

	stream, producer := NewStream(ctx)
	resp, err := retry.Do(producer.ctx, func(ctx context.Context) (*http.Response, error) {
		return c.post(ctx, url, reqBytes, true)
	}, c.retryOpts...)
	if err != nil {
		stream.Close()
		return nil, err
	}

	go func() {
		defer resp.Body.Close()
		defer producer.Close()
		if err := readEvents(resp.Body, producer); err != nil {
			log.Errorf("[LLMClient] 流式响应中断: %v", err)
			producer.Fail(err)
		}
	}()
	return stream, nil
}

// readEvents 逐行解析 SSE 的 data: 负载并把文本片段推给 producer。
func readEvents(body io.Reader, producer *Producer) error {
	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if line != "" && strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return nil
			}
			var chunk generateResponse
			if jsonErr := json.Unmarshal([]byte(data), &chunk); jsonErr == nil {
				if chunk.blocked() {
					return ErrBlocked
				}
				if text := chunk.text(); text != "" {
					if !producer.Send(text) {
						return nil
					}
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read from stream: %w", err)
		}
	}
}
