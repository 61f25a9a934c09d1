package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcneo4j "github.com/testcontainers/testcontainers-go/modules/neo4j"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/nidhogg/synapse/internal/discovery"
	"github.com/nidhogg/synapse/internal/engine"
	"github.com/nidhogg/synapse/internal/hebbian"
	"github.com/nidhogg/synapse/internal/knowledge"
	"github.com/nidhogg/synapse/internal/neurogenesis"
	"github.com/nidhogg/synapse/internal/research"
)

// Suppress unused import warning for testcontainers base package.
var _ = testcontainers.GenericContainerRequest{}

// Package-level shared state set by TestMain, used by all subtests.
var (
	testLogger   *zap.Logger
	testStore    *knowledge.Store
	testRedisURL string
)

// startNeo4j starts a Neo4j testcontainer, returns URI + cleanup func.
func startNeo4j(ctx context.Context) (string, func(), error) {
	container, err := tcneo4j.Run(ctx, "neo4j:5-community",
		tcneo4j.WithoutAuthentication(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start neo4j: %w", err)
	}
	uri, err := container.BoltUrl(ctx)
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("neo4j bolt url: %w", err)
	}
	cleanup := func() { container.Terminate(ctx) }
	return uri, cleanup, nil
}

// startRedis starts a Redis testcontainer, returns URL + cleanup func.
func startRedis(ctx context.Context) (string, func(), error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return "", nil, fmt.Errorf("start redis: %w", err)
	}
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("redis endpoint: %w", err)
	}
	url := "redis://" + endpoint
	cleanup := func() { container.Terminate(ctx) }
	return url, cleanup, nil
}

// knowledgeServer is a fake agent answering research calls, standing in for
// a static agent's query surface.
type knowledgeServer struct {
	srv *httptest.Server

	mu        sync.Mutex
	fragments map[string]research.Fragment // concept -> answer
	calls     int
}

func newKnowledgeServer() *knowledgeServer {
	ks := &knowledgeServer{fragments: make(map[string]research.Fragment)}
	ks.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/research" {
			http.NotFound(w, r)
			return
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ks.mu.Lock()
		frag, ok := ks.fragments[req["concept"]]
		ks.calls++
		ks.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(frag)
	}))
	return ks
}

func (ks *knowledgeServer) know(concept string, confidence float64, fragment string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.fragments[concept] = research.Fragment{
		SourceID:          "knowledge-server",
		Confidence:        confidence,
		KnowledgeFragment: fragment,
	}
}

func (ks *knowledgeServer) Close() { ks.srv.Close() }

// provisionServer is a fake compute collaborator that hands out endpoints
// and counts how many instances it created.
type provisionServer struct {
	srv      *httptest.Server
	requests atomic.Int64
}

func newProvisionServer() *provisionServer {
	ps := &provisionServer{}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/provision":
			n := ps.requests.Add(1)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{
				"endpoint": fmt.Sprintf("http://dynamic-%d:9000", n),
			})
		case "/deprovision":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	return ps
}

func (ps *provisionServer) Close() { ps.srv.Close() }

// harness wires a full coordinator against the shared Neo4j and Redis
// containers plus fake HTTP collaborators.
type harness struct {
	coord     *engine.Coordinator
	adapter   *hebbian.Adapter
	pipeline  *neurogenesis.Pipeline
	knowledge *knowledgeServer
	provision *provisionServer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ks := newKnowledgeServer()
	t.Cleanup(ks.Close)
	ps := newProvisionServer()
	t.Cleanup(ps.Close)

	lease, err := neurogenesis.NewRedisLease(testRedisURL, time.Minute, testLogger)
	if err != nil {
		t.Fatalf("redis lease: %v", err)
	}
	t.Cleanup(func() { lease.Close() })

	disc := discovery.NewEngine(testStore, discovery.Options{StoreTimeout: 5 * time.Second}, testLogger)
	adapter := hebbian.NewAdapter(testStore, hebbian.Config{}, testLogger)
	researcher := research.NewClient(2*time.Second, testLogger)
	provisioner := neurogenesis.NewHTTPProvisioner(ps.srv.URL, 5*time.Second, testLogger)
	pipe := neurogenesis.NewPipeline(testStore, researcher, provisioner, lease,
		neurogenesis.Options{AwaitPoll: 50 * time.Millisecond}, testLogger)
	coord := engine.NewCoordinator(testStore, disc, pipe, adapter, 64, testLogger)

	return &harness{
		coord:     coord,
		adapter:   adapter,
		pipeline:  pipe,
		knowledge: ks,
		provision: ps,
	}
}

// bootstrap registers one static agent whose endpoint is the fake knowledge
// server, seeded with edges to the given concepts.
func (h *harness) bootstrap(t *testing.T, name, region string, concepts ...string) {
	t.Helper()
	err := h.coord.Bootstrap(context.Background(), []engine.StaticAgent{{
		Name:         name,
		Endpoint:     h.knowledge.srv.URL,
		Capabilities: []string{"define", "explain"},
		Region:       region,
		Concepts:     concepts,
	}})
	if err != nil {
		t.Fatalf("bootstrap %s: %v", name, err)
	}
}
