package t212

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/t212-digrin/internal/domain"
	"github.com/jeovahfialho/t212-digrin/pkg/metrics"
)

const (
	DefaultBaseURL = "https://live.trading212.com"
	exportsPath    = "/api/v0/history/exports"
)

// APIError is a non-2xx answer from the reporting service.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trading212 api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Client talks to the Trading 212 history export endpoints. Over-limit calls
// come back as an empty result, not as an error.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	data       domain.DataIncluded
}

type ClientOption func(*Client)

func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: time.Minute,
		},
		logger: zap.NewNop(),
		data:   domain.AllData(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithDataIncluded(data domain.DataIncluded) ClientOption {
	return func(c *Client) {
		c.data = data
	}
}

type createRequest struct {
	DataIncluded domain.DataIncluded `json:"dataIncluded"`
	TimeFrom     string              `json:"timeFrom"`
	TimeTo       string              `json:"timeTo"`
}

type createResponse struct {
	ReportID domain.ReportID `json:"reportId"`
}

// CreateReport asks the service to generate a report for r. A zero id with a
// nil error means the create limit has not elapsed yet.
func (c *Client) CreateReport(ctx context.Context, r domain.DateRange) (domain.ReportID, error) {
	timer := metrics.NewTimer()

	payload, err := json.Marshal(createRequest{
		DataIncluded: c.data,
		TimeFrom:     r.From().UTC().Format(time.RFC3339),
		TimeTo:       r.To().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return 0, fmt.Errorf("erro ao serializar pedido: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+exportsPath, payload, true)
	if isRateLimited(err) {
		metrics.RecordServiceCall("create", "rate_limited", timer.Elapsed())
		c.logger.Debug("limite de criação atingido")
		return 0, nil
	}
	if err != nil {
		metrics.RecordServiceCall("create", "error", timer.Elapsed())
		return 0, fmt.Errorf("erro ao criar relatório: %w", err)
	}

	var resp createResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("erro ao deserializar resposta: %w", err)
	}

	metrics.RecordServiceCall("create", "ok", timer.Elapsed())
	return resp.ReportID, nil
}

// ListReports returns every export the service knows about, in the order
// the service appended them. An empty slice with a nil error means the list
// limit has been reached.
func (c *Client) ListReports(ctx context.Context) ([]domain.ReportStatusEntry, error) {
	timer := metrics.NewTimer()

	body, err := c.do(ctx, http.MethodGet, c.baseURL+exportsPath, nil, true)
	if isRateLimited(err) {
		metrics.RecordServiceCall("list", "rate_limited", timer.Elapsed())
		c.logger.Debug("limite de listagem atingido")
		return nil, nil
	}
	if err != nil {
		metrics.RecordServiceCall("list", "error", timer.Elapsed())
		return nil, fmt.Errorf("erro ao listar relatórios: %w", err)
	}

	var entries []domain.ReportStatusEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("erro ao deserializar lista: %w", err)
	}

	metrics.RecordServiceCall("list", "ok", timer.Elapsed())
	return entries, nil
}

// Download fetches the report bytes behind entry's download link. The link
// is pre-signed, so no credentials are sent.
func (c *Client) Download(ctx context.Context, entry domain.ReportStatusEntry) ([]byte, error) {
	if entry.DownloadLink == "" {
		return nil, fmt.Errorf("relatório %d sem link de download", entry.ReportID)
	}

	timer := metrics.NewTimer()

	body, err := c.do(ctx, http.MethodGet, entry.DownloadLink, nil, false)
	if err != nil {
		metrics.RecordServiceCall("download", "error", timer.Elapsed())
		return nil, fmt.Errorf("erro ao baixar relatório %d: %w", entry.ReportID, err)
	}

	metrics.RecordServiceCall("download", "ok", timer.Elapsed())
	c.logger.Info("relatório baixado",
		zap.Int64("report_id", int64(entry.ReportID)),
		zap.Int("bytes", len(body)))

	return body, nil
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte, auth bool) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erro na requisição: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler resposta: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}

func isRateLimited(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.IsRateLimited()
}
