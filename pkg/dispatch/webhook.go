package dispatch

import (
	"context"
	"net/http"
	"os"

	"github.com/ehudso7/vrux-observe/pkg/logger"
	"github.com/ehudso7/vrux-observe/pkg/models"
)

const webhookURLEnv = "OBSERVE_WEBHOOK_URL"

// WebhookProvider POSTs telemetry envelopes to a single configured URL.
// Every payload has the shape {"kind": "...", "data": [...]}, so one
// receiver can accept all four kinds.
type WebhookProvider struct {
	url      string
	token    string
	probeURL string
	headers  []models.Header
	client   *http.Client
	logger   logger.Logger
}

type webhookEnvelope struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

// NewWebhook builds the provider from cfg, falling back to the
// OBSERVE_WEBHOOK_URL environment variable. Without a URL the provider
// is disabled and every send is a no-op.
func NewWebhook(cfg *models.WebhookProviderConfig, log logger.Logger) *WebhookProvider {
	if cfg == nil {
		cfg = &models.WebhookProviderConfig{}
	}

	url := cfg.URL
	if url == "" {
		url = os.Getenv(webhookURLEnv)
	}

	if url == "" {
		log.Info().Msg("Webhook provider disabled, no URL configured")
	}

	return &WebhookProvider{
		url:      url,
		token:    cfg.Token,
		probeURL: cfg.ProbeURL,
		headers:  cfg.Headers,
		client:   &http.Client{Timeout: defaultRequestTimeout},
		logger:   log,
	}
}

func (p *WebhookProvider) Name() string { return "webhook" }

func (p *WebhookProvider) Enabled() bool { return p.url != "" }

func (p *WebhookProvider) SendMetrics(ctx context.Context, batch []models.MetricData) error {
	if !p.Enabled() || len(batch) == 0 {
		return nil
	}

	return p.send(ctx, kindMetrics, batch)
}

func (p *WebhookProvider) SendLogs(ctx context.Context, batch []models.LogData) error {
	if !p.Enabled() || len(batch) == 0 {
		return nil
	}

	return p.send(ctx, kindLogs, batch)
}

func (p *WebhookProvider) SendTraces(ctx context.Context, batch []*models.TraceData) error {
	if !p.Enabled() || len(batch) == 0 {
		return nil
	}

	return p.send(ctx, kindTraces, batch)
}

func (p *WebhookProvider) SendAlert(ctx context.Context, alert models.AlertData) error {
	if !p.Enabled() {
		return nil
	}

	return p.send(ctx, kindAlerts, []models.AlertData{alert})
}

// HealthCheck GETs the configured probe URL when one is set; otherwise
// the provider is assumed healthy.
func (p *WebhookProvider) HealthCheck(ctx context.Context) error {
	if !p.Enabled() || p.probeURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.probeURL, nil)
	if err != nil {
		return err
	}

	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	return checkResponse(resp)
}

func (p *WebhookProvider) send(ctx context.Context, kind string, data interface{}) error {
	headers := make(map[string]string, len(p.headers)+1)

	if p.token != "" {
		headers["Authorization"] = "Bearer " + p.token
	}

	for _, h := range p.headers {
		headers[h.Key] = h.Value
	}

	return postJSON(ctx, p.client, p.url, headers, webhookEnvelope{Kind: kind, Data: data})
}

func (p *WebhookProvider) setHeaders(req *http.Request) {
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	for _, h := range p.headers {
		req.Header.Set(h.Key, h.Value)
	}
}
