package restpubsub

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/clinia/emulator-console/emulatorx"
	"github.com/clinia/emulator-console/httpx"
	"github.com/clinia/emulator-console/logrusx"
	"github.com/clinia/emulator-console/pubsubx"
	"github.com/clinia/emulator-console/pubsubx/messagex"
	"github.com/clinia/emulator-console/tracex"
)

const (
	tracerName    = "github.com/clinia/emulator-console/pubsubx/rest"
	componentName = "pubsubx.rest"

	opListTopics             = pubsubx.OperationListTopics
	opDeleteTopic            = pubsubx.OperationDeleteTopic
	opCreateTopic            = pubsubx.OperationCreateTopic
	opPublish                = pubsubx.OperationPublish
	opListTopicSubscriptions = pubsubx.OperationListTopicSubscriptions

	// maxPages bounds pagination against an emulator that keeps handing out tokens.
	maxPages = 1000
)

// Client talks to the emulator REST surface (v1).
type Client struct {
	l          *logrusx.Logger
	http       *httpx.Client
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	metrics    *pubsubx.Metrics
}

var _ pubsubx.ResourceClient = (*Client)(nil)

type publishBody struct {
	Messages []publishMessage `json:"messages"`
}

type publishMessage struct {
	Data       string            `json:"data"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func NewClient(l *logrusx.Logger, httpClient *httpx.Client, opts ...pubsubx.PubSubOption) *Client {
	o := pubsubx.NewPubSubOptions(opts...)

	tp := o.TracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	if httpClient == nil {
		httpClient = httpx.NewHTTPClient()
	}

	prop := o.Propagator
	if prop == nil {
		prop = propagation.TraceContext{}
	}

	return &Client{
		l:          l,
		http:       httpClient,
		tracer:     tp.Tracer(tracerName),
		propagator: prop,
		metrics:    o.Metrics,
	}
}

// ListTopics implements pubsubx.ResourceClient.
func (c *Client) ListTopics(ctx context.Context, cfg *emulatorx.ConnectionConfig) (topics pubsubx.TopicCollection, err error) {
	if cfg == nil {
		return nil, pubsubx.NewConfigUnsetFailure(opListTopics)
	}

	ctx, span, l := c.instrument(ctx, opListTopics, cfg)
	defer func() { tracex.End(span, err) }()

	names := []string{}
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		resp, err := c.do(ctx, opListTopics, &httpx.Request{
			Method:          http.MethodGet,
			URL:             topicsURL(cfg),
			QueryParameters: query,
		})
		if err != nil {
			return nil, err
		}

		body := resp.Body
		if !gjson.ValidBytes(body) {
			// One unreadable page makes the whole listing unreliable.
			if len(body) > 0 || page > 0 {
				l.Warnf("ignoring an unreadable topic list, page %d could not be parsed", page+1)
			}
			names = names[:0]
			break
		}

		parsed := gjson.ParseBytes(body)
		for _, t := range parsed.Get("topics").Array() {
			if name := t.Get("name").String(); name != "" {
				names = append(names, name)
			}
		}

		pageToken = parsed.Get("nextPageToken").String()
		if pageToken == "" {
			break
		}
	}

	topics = pubsubx.NewTopicCollection(names...)
	span.SetAttributes(attribute.Int("pubsub.topics", len(topics)))
	l.Debugf("listed %d topics", len(topics))
	return topics, nil
}

// DeleteTopic implements pubsubx.ResourceClient.
func (c *Client) DeleteTopic(ctx context.Context, cfg *emulatorx.ConnectionConfig, name string) (status int, err error) {
	if cfg == nil {
		return 0, pubsubx.NewConfigUnsetFailure(opDeleteTopic)
	}

	ctx, span, _ := c.instrument(ctx, opDeleteTopic, cfg)
	defer func() { tracex.End(span, err) }()
	span.SetAttributes(attribute.String("pubsub.topic", name))

	resp, err := c.do(ctx, opDeleteTopic, &httpx.Request{
		Method: http.MethodDelete,
		URL:    topicURL(cfg, name),
	})
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, rejection(opDeleteTopic, resp)
}

// CreateTopic implements pubsubx.ResourceClient.
func (c *Client) CreateTopic(ctx context.Context, cfg *emulatorx.ConnectionConfig, name string) (status int, err error) {
	if cfg == nil {
		return 0, pubsubx.NewConfigUnsetFailure(opCreateTopic)
	}

	ctx, span, _ := c.instrument(ctx, opCreateTopic, cfg)
	defer func() { tracex.End(span, err) }()
	span.SetAttributes(attribute.String("pubsub.topic", name))

	resp, err := c.do(ctx, opCreateTopic, &httpx.Request{
		Method: http.MethodPut,
		URL:    topicURL(cfg, name),
	})
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, rejection(opCreateTopic, resp)
}

// PublishMessage implements pubsubx.ResourceClient.
// The payload is sent base64 encoded, as the emulator expects.
func (c *Client) PublishMessage(ctx context.Context, cfg *emulatorx.ConnectionConfig, req pubsubx.PublishRequest) (status int, err error) {
	if cfg == nil {
		return 0, pubsubx.NewConfigUnsetFailure(opPublish)
	}

	ctx, span, l := c.instrument(ctx, opPublish, cfg)
	defer func() { tracex.End(span, err) }()
	span.SetAttributes(attribute.String("pubsub.topic", req.TopicShortName))

	msg := messagex.NewMessage([]byte(req.Payload))
	resp, err := c.do(ctx, opPublish, &httpx.Request{
		Method: http.MethodPost,
		URL:    topicURL(cfg, req.TopicShortName) + ":publish",
		Body: publishBody{
			Messages: []publishMessage{{
				Data:       base64.StdEncoding.EncodeToString(msg.Data),
				Attributes: msg.Attributes,
			}},
		},
	})
	if err != nil {
		return 0, err
	}

	if resp.IsOK() {
		l.WithField("message_id", msg.ID).
			WithField("emulator_message_ids", gjson.GetBytes(resp.Body, "messageIds").String()).
			Debugf("published message to %s", req.TopicShortName)
	}
	return resp.StatusCode, rejection(opPublish, resp)
}

// ListTopicSubscriptions implements pubsubx.ResourceClient.
func (c *Client) ListTopicSubscriptions(ctx context.Context, cfg *emulatorx.ConnectionConfig, topic string) (subscriptions []string, err error) {
	if cfg == nil {
		return nil, pubsubx.NewConfigUnsetFailure(opListTopicSubscriptions)
	}

	ctx, span, _ := c.instrument(ctx, opListTopicSubscriptions, cfg)
	defer func() { tracex.End(span, err) }()
	span.SetAttributes(attribute.String("pubsub.topic", topic))

	subscriptions = []string{}
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		resp, err := c.do(ctx, opListTopicSubscriptions, &httpx.Request{
			Method:          http.MethodGet,
			URL:             topicURL(cfg, topic) + "/subscriptions",
			QueryParameters: query,
		})
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(resp.Body) {
			return nil, pubsubx.NewMalformedResponse(opListTopicSubscriptions, errors.New("response body is not valid JSON"))
		}

		parsed := gjson.ParseBytes(resp.Body)
		for _, s := range parsed.Get("subscriptions").Array() {
			if name := s.String(); name != "" {
				subscriptions = append(subscriptions, name)
			}
		}

		pageToken = parsed.Get("nextPageToken").String()
		if pageToken == "" {
			break
		}
	}

	return subscriptions, nil
}

// do sends the request and turns anything but a 200 into a failure, except
// for mutations where the status is handed back to the caller.
func (c *Client) do(ctx context.Context, op string, req *httpx.Request) (*httpx.Response, error) {
	if req.Headers == nil {
		req.Headers = http.Header{}
	}
	c.propagator.Inject(ctx, propagation.HeaderCarrier(req.Headers))

	start := time.Now()
	resp, err := c.http.MakeHTTPRequest(ctx, req)
	if err != nil {
		c.metrics.ObserveRequest(op, 0, time.Since(start))
		return nil, pubsubx.NewTransportFailure(op, err)
	}
	c.metrics.ObserveRequest(op, resp.StatusCode, resp.Duration)

	c.l.WithContext(ctx).WithFields(map[string]interface{}{
		"operation":   op,
		"status_code": resp.StatusCode,
		"duration_ms": resp.Duration.Milliseconds(),
	}).Tracef("%s %s", req.Method, req.URL)

	if isQuery(op) && !resp.IsOK() {
		return nil, pubsubx.NewRemoteRejection(op, resp.StatusCode, resp.Body)
	}
	return resp, nil
}

func isQuery(op string) bool {
	return op == opListTopics || op == opListTopicSubscriptions
}

func rejection(op string, resp *httpx.Response) error {
	if resp.IsOK() {
		return nil
	}
	return pubsubx.NewRemoteRejection(op, resp.StatusCode, resp.Body)
}

// instrument starts a client span for op and returns a logger bound to it.
// Every request of the operation shares one request id.
func (c *Client) instrument(ctx context.Context, op string, cfg *emulatorx.ConnectionConfig) (context.Context, trace.Span, *logrusx.Logger) {
	if _, ok := httpx.RequestIDFromContext(ctx); !ok {
		ctx = httpx.WithRequestID(ctx, httpx.NewRequestID())
	}

	ctx, span, l := tracex.Instrument(ctx, c.l, c.tracer, componentName, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("pubsub.emulator", cfg.Address()),
			attribute.String("pubsub.project_id", cfg.ProjectID),
		),
	)

	return ctx, span, l.WithFields(map[string]interface{}{
		"operation":  op,
		"emulator":   cfg.Address(),
		"project_id": cfg.ProjectID,
	})
}

func topicsURL(cfg *emulatorx.ConnectionConfig) string {
	return fmt.Sprintf("%s/v1/projects/%s/topics", cfg.BaseURL(), url.PathEscape(cfg.ProjectID))
}

func topicURL(cfg *emulatorx.ConnectionConfig, name string) string {
	return fmt.Sprintf("%s/%s", topicsURL(cfg), url.PathEscape(messagex.ShortName(name)))
}
