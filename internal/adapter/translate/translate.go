// Package translate implements the dictionary translator on top of a
// LibreTranslate-compatible HTTP endpoint.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter/httpclient"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// DefaultBatchSize bounds how many texts go into one request.
const DefaultBatchSize = 50

// Translator calls POST <endpoint>/translate.
type Translator struct {
	endpoint string
	apiKey   string
	source   string
	batch    int
	timeout  time.Duration
	client   *resty.Client
	logger   *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithAPIKey sets the api_key request field.
func WithAPIKey(key string) Option { return func(t *Translator) { t.apiKey = key } }

// WithSource sets the source language. The default is "auto".
func WithSource(lang string) Option { return func(t *Translator) { t.source = lang } }

// WithBatchSize sets how many texts are sent per request.
func WithBatchSize(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.batch = n
		}
	}
}

// WithTimeout sets the request timeout of the default client.
func WithTimeout(d time.Duration) Option { return func(t *Translator) { t.timeout = d } }

// WithClient replaces the HTTP client.
func WithClient(c *resty.Client) Option { return func(t *Translator) { t.client = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(t *Translator) { t.logger = l } }

// New creates a translator for the endpoint base URL.
func New(endpoint string, opts ...Option) *Translator {
	t := &Translator{
		endpoint: strings.TrimRight(endpoint, "/"),
		source:   "auto",
		batch:    DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	if t.client == nil {
		t.client = httpclient.New(t.logger, t.timeout)
	}
	return t
}

// Client returns the underlying HTTP client.
func (t *Translator) Client() *resty.Client { return t.client }

type request struct {
	Q      []string `json:"q"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Format string   `json:"format"`
	APIKey string   `json:"api_key,omitempty"`
}

type response struct {
	TranslatedText []string `json:"translatedText"`
}

type apiError struct {
	Error string `json:"error"`
}

// Translate implements adapter.Translator. The dictionary is not modified;
// the returned copy carries the <field>_<lang> column. Each distinct text
// is translated once; missing cells stay missing.
func (t *Translator) Translate(ctx context.Context, dict *core.Dataset, field, lang string) (*core.Dataset, error) {
	if t.endpoint == "" {
		return nil, fmt.Errorf("no translation endpoint configured")
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return nil, fmt.Errorf("target language is required")
	}
	col := dict.Column(field)
	if col == nil {
		return nil, fmt.Errorf("dictionary has no %q field", field)
	}

	var texts []string
	seen := make(map[string]bool)
	for _, v := range col.Values {
		s := strings.TrimSpace(v.String())
		if v.IsMissing() || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		texts = append(texts, s)
	}

	translated := make(map[string]string, len(texts))
	for start := 0; start < len(texts); start += t.batch {
		end := min(start+t.batch, len(texts))
		out, err := t.call(ctx, texts[start:end], lang)
		if err != nil {
			return nil, err
		}
		for i, s := range texts[start:end] {
			translated[s] = out[i]
		}
	}

	values := make([]core.Value, len(col.Values))
	for i, v := range col.Values {
		s := strings.TrimSpace(v.String())
		if tr, ok := translated[s]; ok && !v.IsMissing() {
			values[i] = core.Text(tr)
			continue
		}
		values[i] = v
	}

	out := dict.Clone()
	target := core.TranslatedField(field, lang)
	if out.HasColumn(target) {
		if err := out.SetColumn(target, values); err != nil {
			return nil, err
		}
	} else if err := out.AddColumn(core.NewColumn(target, values...)); err != nil {
		return nil, err
	}

	t.logger.Info("field translated",
		slog.String("field", field),
		slog.String("target", target),
		slog.Int("texts", len(texts)))
	return out, nil
}

func (t *Translator) call(ctx context.Context, texts []string, lang string) ([]string, error) {
	u, err := url.JoinPath(t.endpoint, "translate")
	if err != nil {
		return nil, fmt.Errorf("invalid translation endpoint %q: %w", t.endpoint, err)
	}

	var res response
	var apiErr apiError
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(request{Q: texts, Source: t.source, Target: lang, Format: "text", APIKey: t.apiKey}).
		SetResult(&res).
		SetError(&apiErr).
		Post(u)
	if err != nil {
		return nil, fmt.Errorf("translation request: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return nil, fmt.Errorf("translation service: %s (status %d)", apiErr.Error, resp.StatusCode())
		}
		return nil, httpclient.Check(resp)
	}
	if len(res.TranslatedText) != len(texts) {
		return nil, fmt.Errorf("translation service returned %d texts for %d inputs", len(res.TranslatedText), len(texts))
	}
	return res.TranslatedText, nil
}
