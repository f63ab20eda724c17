package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	"sasapp-gateway/internal/logging"
	"sasapp-gateway/sasapp/domain"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
)

const maxReplyBytes = 8 << 20

// LegacyClient fala com os scripts PHP do legado. Implementa domain.Upstream.
type LegacyClient struct {
	base           *url.URL
	http           *http.Client
	pool           domain.SlotPool
	acquireTimeout time.Duration
	getAttempts    uint
	retryDelay     time.Duration
	userAgent      string
	stats          domain.CallStats
	log            zerolog.Logger
}

type LegacyOption func(*LegacyClient)

// WithSlotPool limita as chamadas em voo ao pool informado.
func WithSlotPool(p domain.SlotPool, acquireTimeout time.Duration) LegacyOption {
	return func(c *LegacyClient) {
		c.pool = p
		c.acquireTimeout = acquireTimeout
	}
}

// WithGetAttempts define quantas tentativas um GET recebe. POST nunca é repetido.
func WithGetAttempts(n uint, delay time.Duration) LegacyOption {
	return func(c *LegacyClient) {
		if n == 0 {
			n = 1
		}
		c.getAttempts = n
		c.retryDelay = delay
	}
}

func WithCallStats(s domain.CallStats) LegacyOption {
	return func(c *LegacyClient) { c.stats = s }
}

func WithLegacyLogger(l zerolog.Logger) LegacyOption {
	return func(c *LegacyClient) { c.log = l }
}

func WithUserAgent(ua string) LegacyOption {
	return func(c *LegacyClient) { c.userAgent = ua }
}

func NewLegacyClient(baseURL string, timeout time.Duration, opts ...LegacyOption) (*LegacyClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("url do legado inválida: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("url do legado inválida: esquema %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	c := &LegacyClient{
		base:        u,
		http:        &http.Client{Timeout: timeout},
		getAttempts: 1,
		retryDelay:  300 * time.Millisecond,
		userAgent:   "sasapp-gateway/1",
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *LegacyClient) Do(ctx context.Context, call domain.Call) (domain.Reply, error) {
	if call.Method == "" {
		call.Method = http.MethodPost
		if call.Encoding == domain.EncodingQuery {
			call.Method = http.MethodGet
		}
	}
	call.Method = strings.ToUpper(call.Method)

	release, ok := acquireSlot(ctx, c.pool, c.acquireTimeout)
	if !ok {
		err := &domain.UpstreamError{Kind: domain.KindBusy, Script: call.Script, Err: ctx.Err()}
		c.record(ctx, call, domain.Reply{}, err)
		return domain.Reply{}, err
	}
	defer release()

	start := time.Now()
	var (
		reply domain.Reply
		err   error
	)
	if call.Method == http.MethodGet && c.getAttempts > 1 {
		reply, err = c.doWithRetry(ctx, call)
	} else {
		reply, err = c.once(ctx, call)
	}
	reply.Elapsed = time.Since(start)

	c.record(ctx, call, reply, err)
	return reply, err
}

// doWithRetry repete GETs em erro de transporte ou 5xx.
// A última resposta é preservada porque retry-go descarta o valor em falha.
func (c *LegacyClient) doWithRetry(ctx context.Context, call domain.Call) (domain.Reply, error) {
	var last domain.Reply
	_, err := retry.DoWithData(
		func() (domain.Reply, error) {
			r, err := c.once(ctx, call)
			last = r
			return r, err
		},
		retry.Context(ctx),
		retry.Attempts(c.getAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
	if err != nil {
		var ue *domain.UpstreamError
		if !errors.As(err, &ue) {
			err = classifyTransport(call.Script, err)
		}
		return last, err
	}
	return last, nil
}

func retryable(err error) bool {
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		return true
	}
	switch ue.Kind {
	case domain.KindUnavailable, domain.KindTimeout:
		return true
	case domain.KindStatus:
		return ue.StatusCode >= 500
	default:
		return false
	}
}

func (c *LegacyClient) once(ctx context.Context, call domain.Call) (domain.Reply, error) {
	req, err := c.newRequest(ctx, call)
	if err != nil {
		return domain.Reply{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Reply{}, classifyTransport(call.Script, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return domain.Reply{}, classifyTransport(call.Script, err)
	}

	reply := domain.Reply{StatusCode: resp.StatusCode, Body: body}
	if resp.StatusCode >= 400 {
		return reply, &domain.UpstreamError{Kind: domain.KindStatus, Script: call.Script, StatusCode: resp.StatusCode}
	}
	return reply, nil
}

func (c *LegacyClient) newRequest(ctx context.Context, call domain.Call) (*http.Request, error) {
	target := c.base.JoinPath(strings.TrimLeft(call.Script, "/"))

	var (
		body        io.Reader
		contentType string
	)
	switch call.Encoding {
	case domain.EncodingQuery:
		target.RawQuery = call.Fields.Encode()
	case domain.EncodingMultipart:
		buf, ct, err := encodeMultipart(call.Fields, call.Files)
		if err != nil {
			return nil, fmt.Errorf("multipart %s: %w", call.Script, err)
		}
		body, contentType = buf, ct
	case domain.EncodingJSON:
		raw, err := json.Marshal(flattenValues(call.Fields))
		if err != nil {
			return nil, fmt.Errorf("json %s: %w", call.Script, err)
		}
		body, contentType = bytes.NewReader(raw), "application/json"
	default:
		body = strings.NewReader(call.Fields.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", call.Script, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.5")
	req.Header.Set("User-Agent", c.userAgent)
	// correlaciona com o access log do gateway
	req.Header.Set("X-Request-Id", logging.GetOrGenerateRequestID(ctx))
	return req, nil
}

func encodeMultipart(fields url.Values, files []domain.File) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range fields[k] {
			if err := mw.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
	}

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		ct := f.MimeType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

// flattenValues vira objeto JSON: valor único como string, repetidos como array.
func flattenValues(v url.Values) map[string]any {
	out := make(map[string]any, len(v))
	for k, vals := range v {
		if len(vals) == 1 {
			out[k] = vals[0]
			continue
		}
		out[k] = vals
	}
	return out
}

func classifyTransport(script string, err error) error {
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	kind := domain.KindUnavailable
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = domain.KindTimeout
	}
	return &domain.UpstreamError{Kind: kind, Script: script, Err: err}
}

func outcomeOf(err error) string {
	if err == nil {
		return domain.OutcomeOk
	}
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		switch ue.Kind {
		case domain.KindTimeout:
			return domain.OutcomeTimeout
		case domain.KindUnavailable:
			return domain.OutcomeIndisponivel
		case domain.KindBusy:
			return domain.OutcomeOcupado
		}
	}
	return domain.OutcomeErro
}

func (c *LegacyClient) record(ctx context.Context, call domain.Call, reply domain.Reply, err error) {
	outcome := outcomeOf(err)

	ev := c.log.Debug()
	if err != nil {
		ev = c.log.Warn().Err(err)
	}
	ev.Str("script", call.Script).
		Str("method", call.Method).
		Int("status", reply.StatusCode).
		Str("outcome", outcome).
		Dur("elapsed", reply.Elapsed).
		Msg("chamada ao legado")

	if c.stats == nil {
		return
	}
	_ = c.stats.Record(ctx, domain.CallEvent{
		Script:     call.Script,
		Method:     call.Method,
		Outcome:    outcome,
		StatusCode: reply.StatusCode,
		Elapsed:    reply.Elapsed,
		At:         time.Now(),
	})
}
