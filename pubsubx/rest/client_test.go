package restpubsub

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/clinia/emulator-console/emulatorx"
	"github.com/clinia/emulator-console/httpx"
	"github.com/clinia/emulator-console/logrusx"
	"github.com/clinia/emulator-console/pubsubx"
	"github.com/clinia/emulator-console/pubsubx/messagex"
	"github.com/clinia/emulator-console/testx"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte

	Traceparent string
	RequestID   string
}

type RestClientTestSuite struct {
	suite.Suite
	server   *httptest.Server
	cfg      *emulatorx.ConnectionConfig
	recorder *tracetest.SpanRecorder
	registry *prometheus.Registry
	client   *Client

	mu       sync.Mutex
	handler  http.HandlerFunc
	requests []recordedRequest
}

func TestRestClientTestSuite(t *testing.T) {
	suite.Run(t, new(RestClientTestSuite))
}

func (s *RestClientTestSuite) SetupSuite() {
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.requests = append(s.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   body,

			Traceparent: r.Header.Get("traceparent"),
			RequestID:   r.Header.Get(httpx.RequestIDHeaderKey),
		})
		h := s.handler
		s.mu.Unlock()

		if h == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		h(w, r)
	}))
	s.cfg = configFor(s.T(), s.server.URL, "p1")
}

func (s *RestClientTestSuite) TearDownSuite() {
	s.server.Close()
}

func (s *RestClientTestSuite) SetupTest() {
	s.mu.Lock()
	s.handler = nil
	s.requests = nil
	s.mu.Unlock()

	s.recorder = tracetest.NewSpanRecorder()
	s.registry = prometheus.NewRegistry()
	s.client = NewClient(
		logrusx.New("emulator-console", "test", logrusx.WithOutput(io.Discard)),
		httpx.NewHTTPClient(),
		pubsubx.WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(s.recorder))),
		pubsubx.WithMetrics(pubsubx.NewMetrics(s.registry)),
	)
}

func (s *RestClientTestSuite) respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
}

func (s *RestClientTestSuite) recorded() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedRequest(nil), s.requests...)
}

func configFor(t *testing.T, rawURL, projectID string) *emulatorx.ConnectionConfig {
	t.Helper()

	host, port, err := net.SplitHostPort(rawURL[len("http://"):])
	if err != nil {
		t.Fatal(err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		t.Fatal(err)
	}
	return &emulatorx.ConnectionConfig{Host: host, Port: p, ProjectID: projectID}
}

func (s *RestClientTestSuite) TestListTopics() {
	s.respond(http.StatusOK, `{"topics":[{"name":"projects/p1/topics/a"},{"name":"projects/p1/topics/b"}]}`)

	topics, err := s.client.ListTopics(context.Background(), s.cfg)

	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, topics.ShortNames())
	s.Equal([]string{"projects/p1/topics/a", "projects/p1/topics/b"}, topics.Names())

	reqs := s.recorded()
	s.Require().Len(reqs, 1)
	s.Equal(http.MethodGet, reqs[0].Method)
	s.Equal("/v1/projects/p1/topics", reqs[0].Path)

	spans := s.recorder.Ended()
	s.Require().Len(spans, 1)
	s.Equal("pubsubx.rest.list_topics", spans[0].Name())
	s.Equal(codes.Unset, spans[0].Status().Code)
	count, err := testutil.GatherAndCount(s.registry, "emulator_console_pubsub_request_duration_seconds")
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *RestClientTestSuite) TestListTopics_FollowsPages() {
	s.mu.Lock()
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "next" {
			fmt.Fprint(w, `{"topics":[{"name":"projects/p1/topics/b"}]}`)
			return
		}
		fmt.Fprint(w, `{"topics":[{"name":"projects/p1/topics/a"}],"nextPageToken":"next"}`)
	}
	s.mu.Unlock()

	topics, err := s.client.ListTopics(context.Background(), s.cfg)

	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, topics.ShortNames())
	reqs := s.recorded()
	s.Require().Len(reqs, 2)
	s.Equal("pageToken=next", reqs[1].Query)
}

func (s *RestClientTestSuite) TestListTopics_UnreadableLaterPage() {
	for _, body := range []string{`not json`, ``} {
		s.Run(fmt.Sprintf("body=%q", body), func() {
			s.mu.Lock()
			s.handler = func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("pageToken") == "next" {
					fmt.Fprint(w, body)
					return
				}
				fmt.Fprint(w, `{"topics":[{"name":"projects/p1/topics/a"}],"nextPageToken":"next"}`)
			}
			s.mu.Unlock()

			topics, err := s.client.ListTopics(context.Background(), s.cfg)

			s.Require().NoError(err)
			s.NotNil(topics)
			s.Empty(topics)
		})
	}
}

func (s *RestClientTestSuite) TestListTopics_NormalizesMissingTopics() {
	for _, body := range []string{`{}`, `{"topics":[]}`, ``, `not json`, `{"topics":"nope"}`} {
		s.Run(fmt.Sprintf("body=%q", body), func() {
			s.respond(http.StatusOK, body)

			topics, err := s.client.ListTopics(context.Background(), s.cfg)

			s.Require().NoError(err)
			s.NotNil(topics)
			s.Empty(topics)
		})
	}
}

func (s *RestClientTestSuite) TestListTopics_RemoteRejection() {
	s.respond(http.StatusInternalServerError, `{"error":{"message":"boom"}}`)

	topics, err := s.client.ListTopics(context.Background(), s.cfg)

	s.Nil(topics)
	f, ok := pubsubx.AsFailure(err)
	s.Require().True(ok)
	s.Equal(pubsubx.FailureRemoteRejection, f.Kind)
	s.Equal(http.StatusInternalServerError, f.StatusCode)
	s.Contains(f.Error(), "boom")

	spans := s.recorder.Ended()
	s.Require().Len(spans, 1)
	s.Equal(codes.Error, spans[0].Status().Code)
}

func (s *RestClientTestSuite) TestListTopics_TransportFailure() {
	dead := httptest.NewServer(http.NotFoundHandler())
	cfg := configFor(s.T(), dead.URL, "p1")
	dead.Close()

	_, err := s.client.ListTopics(context.Background(), cfg)

	kind, ok := pubsubx.FailureKindOf(err)
	s.Require().True(ok)
	s.Equal(pubsubx.FailureTransport, kind)
}

func (s *RestClientTestSuite) TestConfigUnset() {
	ctx := context.Background()

	_, err := s.client.ListTopics(ctx, nil)
	s.assertConfigUnset(err)
	_, err = s.client.DeleteTopic(ctx, nil, "a")
	s.assertConfigUnset(err)
	_, err = s.client.PublishMessage(ctx, nil, pubsubx.NewPublishRequest("a", "x"))
	s.assertConfigUnset(err)
	_, err = s.client.CreateTopic(ctx, nil, "a")
	s.assertConfigUnset(err)
	_, err = s.client.ListTopicSubscriptions(ctx, nil, "a")
	s.assertConfigUnset(err)

	s.Empty(s.recorded())
}

func (s *RestClientTestSuite) assertConfigUnset(err error) {
	kind, ok := pubsubx.FailureKindOf(err)
	s.Require().True(ok)
	s.Equal(pubsubx.FailureConfigUnset, kind)
}

func (s *RestClientTestSuite) TestDeleteTopic() {
	status, err := s.client.DeleteTopic(context.Background(), s.cfg, "projects/p1/topics/a")

	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)
	reqs := s.recorded()
	s.Require().Len(reqs, 1)
	s.Equal(http.MethodDelete, reqs[0].Method)
	s.Equal("/v1/projects/p1/topics/a", reqs[0].Path)
}

func (s *RestClientTestSuite) TestDeleteTopic_Rejected() {
	s.respond(http.StatusNotFound, `{"error":{"code":404,"message":"Topic not found"}}`)

	status, err := s.client.DeleteTopic(context.Background(), s.cfg, "a")

	s.Equal(http.StatusNotFound, status)
	f, ok := pubsubx.AsFailure(err)
	s.Require().True(ok)
	s.Equal(pubsubx.FailureRemoteRejection, f.Kind)
	s.Contains(f.Error(), "Topic not found")
}

func (s *RestClientTestSuite) TestPublishMessage() {
	s.respond(http.StatusOK, `{"messageIds":["1"]}`)

	status, err := s.client.PublishMessage(context.Background(), s.cfg, pubsubx.NewPublishRequest("projects/p1/topics/orders", `{"id":1}`))

	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)
	reqs := s.recorded()
	s.Require().Len(reqs, 1)
	s.Equal(http.MethodPost, reqs[0].Method)
	s.Equal("/v1/projects/p1/topics/orders:publish", reqs[0].Path)

	body := gjson.ParseBytes(reqs[0].Body)
	s.Equal(int64(1), body.Get("messages.#").Int())
	data, err := base64.StdEncoding.DecodeString(body.Get("messages.0.data").String())
	s.Require().NoError(err)
	s.Equal(`{"id":1}`, string(data))
	s.NotEmpty(body.Get("messages.0.attributes." + messagex.IDAttributeKey).String())
}

func (s *RestClientTestSuite) TestCreateTopic() {
	status, err := s.client.CreateTopic(context.Background(), s.cfg, "fresh")

	s.Require().NoError(err)
	s.Equal(http.StatusOK, status)
	reqs := s.recorded()
	s.Require().Len(reqs, 1)
	s.Equal(http.MethodPut, reqs[0].Method)
	s.Equal("/v1/projects/p1/topics/fresh", reqs[0].Path)
}

func (s *RestClientTestSuite) TestListTopicSubscriptions() {
	s.respond(http.StatusOK, `{"subscriptions":["projects/p1/subscriptions/s1","projects/p1/subscriptions/s2"]}`)

	subs, err := s.client.ListTopicSubscriptions(context.Background(), s.cfg, "projects/p1/topics/a")

	s.Require().NoError(err)
	s.Equal([]string{"projects/p1/subscriptions/s1", "projects/p1/subscriptions/s2"}, subs)
	reqs := s.recorded()
	s.Require().Len(reqs, 1)
	s.Equal("/v1/projects/p1/topics/a/subscriptions", reqs[0].Path)
}

func (s *RestClientTestSuite) TestListTopicSubscriptions_Malformed() {
	s.respond(http.StatusOK, `oops`)

	_, err := s.client.ListTopicSubscriptions(context.Background(), s.cfg, "a")

	kind, ok := pubsubx.FailureKindOf(err)
	s.Require().True(ok)
	s.Equal(pubsubx.FailureMalformedResponse, kind)
}

func (s *RestClientTestSuite) TestPropagatesTraceContext() {
	s.respond(http.StatusOK, `{"topics":[]}`)

	_, err := s.client.ListTopics(context.Background(), s.cfg)
	s.Require().NoError(err)

	spans := s.recorder.Ended()
	s.Require().Len(spans, 1)
	reqs := s.recorded()
	s.Require().Len(reqs, 1)
	s.Contains(reqs[0].Traceparent, spans[0].SpanContext().TraceID().String())
}

func (s *RestClientTestSuite) TestLogsSharedRequestID() {
	s.respond(http.StatusOK, `{"topics":[]}`)
	out := testx.NewConcurrentBuffer(s.T())
	client := NewClient(
		logrusx.New("emulator-console", "test",
			logrusx.WithOutput(out),
			logrusx.ForceFormat("json"),
			logrusx.ForceLevel(logrus.TraceLevel),
			logrusx.WithHook(logrusx.NewRequestIdHook(httpx.RequestIDContextKey, "request_id")),
		),
		httpx.NewHTTPClient(),
	)

	_, err := client.ListTopics(context.Background(), s.cfg)
	s.Require().NoError(err)

	reqs := s.recorded()
	s.Require().Len(reqs, 1)
	s.Require().NotEmpty(reqs[0].RequestID)

	var logged []string
	for _, line := range out.Lines() {
		if rid := gjson.Get(line, "request_id"); rid.Exists() {
			logged = append(logged, rid.String())
		}
	}
	s.Require().NotEmpty(logged)
	for _, rid := range logged {
		s.Equal(reqs[0].RequestID, rid)
	}
}

func (s *RestClientTestSuite) TestDeleteKeepsStoreConsistent() {
	s.respond(http.StatusOK, `{"topics":[{"name":"projects/p1/topics/a"},{"name":"projects/p1/topics/b"}]}`)
	l := logrusx.New("emulator-console", "test", logrusx.WithOutput(io.Discard))
	store := pubsubx.NewStore(l, s.client, nil)
	store.SetConfig(s.cfg)
	_, err := store.Refresh(context.Background(), s.cfg)
	s.Require().NoError(err)
	coordinator := pubsubx.NewCoordinator(l, s.client, store, nil)

	for _, name := range []string{"projects/p2/topics/a", "projects/p1/subscriptions/b"} {
		m := coordinator.Delete(context.Background(), s.cfg, name)
		s.Equal(pubsubx.MutationFailed, m.State(), name)
	}
	for _, r := range s.recorded() {
		s.NotEqual(http.MethodDelete, r.Method)
	}

	m := coordinator.Delete(context.Background(), s.cfg, "projects/p1/topics/a")

	s.Equal(pubsubx.MutationApplied, m.State())
	reqs := s.recorded()
	s.Equal(http.MethodDelete, reqs[len(reqs)-1].Method)
	s.Equal("/v1/projects/p1/topics/a", reqs[len(reqs)-1].Path)
	s.Equal([]string{"projects/p1/topics/b"}, store.Snapshot().Topics.Names())
}
