package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"matclass/features"
)

// DefaultEndpoint 默认预测服务地址
const DefaultEndpoint = "http://127.0.0.1:5000/predict"

const maxErrorBody = 512

// StatusError 非2xx响应
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("prediction service returned status %d: %s", e.StatusCode, e.Body)
}

// ErrMissingLabel 响应中缺少predicted_material字段
var ErrMissingLabel = errors.New("response has no predicted_material")

// Client 远程分类服务客户端
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger

	timeout    time.Duration
	hasTimeout bool
}

// Option 客户端配置项
type Option func(*Client)

// WithTimeout 设置请求超时，0表示不限。与WithHTTPClient的先后顺序无关。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		c.hasTimeout = true
	}
}

// WithHTTPClient 替换底层http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger 设置诊断日志
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient 创建客户端，endpoint为空时使用DefaultEndpoint
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hasTimeout {
		// 复制一份，不修改调用方传入的客户端
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// Endpoint 返回目标地址
func (c *Client) Endpoint() string {
	return c.endpoint
}

type predictResponse struct {
	PredictedMaterial *string `json:"predicted_material"`
}

// Predict 发送一次预测请求。不重试；所有失败都归一为Failure。
func (c *Client) Predict(ctx context.Context, payload features.Payload) Outcome {
	start := time.Now()
	outcome := c.do(ctx, payload)

	if outcome.Kind == KindFailure {
		fields := []zap.Field{
			zap.String("endpoint", c.endpoint),
			zap.String("cause", string(outcome.Cause)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(outcome.Err),
		}
		var se *StatusError
		if errors.As(outcome.Err, &se) {
			fields = append(fields, zap.Int("status", se.StatusCode))
		}
		c.logger.Warn("prediction failed", fields...)
		return outcome
	}

	c.logger.Debug("prediction succeeded",
		zap.String("endpoint", c.endpoint),
		zap.String("label", outcome.Label),
		zap.Duration("elapsed", time.Since(start)),
	)
	return outcome
}

func (c *Client) do(ctx context.Context, payload features.Payload) Outcome {
	body, err := json.Marshal(payload)
	if err != nil {
		return Failure(CauseEncoding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Failure(CauseEncoding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Failure(CauseNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Failure(CauseNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b := string(data)
		if len(b) > maxErrorBody {
			b = b[:maxErrorBody]
		}
		return Failure(CauseServer, &StatusError{StatusCode: resp.StatusCode, Body: b})
	}

	var parsed predictResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Failure(CauseSchema, fmt.Errorf("decode response: %w", err))
	}
	if parsed.PredictedMaterial == nil || *parsed.PredictedMaterial == "" {
		return Failure(CauseSchema, ErrMissingLabel)
	}
	return Label(*parsed.PredictedMaterial)
}
