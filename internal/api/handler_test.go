package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/dishahealth/coach/internal/chat"
	"github.com/dishahealth/coach/internal/memory"
	"github.com/dishahealth/coach/internal/provider"
	"github.com/dishahealth/coach/internal/store/memstore"
	"github.com/dishahealth/coach/internal/typing"
)

type failingProvider struct{}

func (failingProvider) Name() string  { return "failing" }
func (failingProvider) Model() string { return "none" }
func (failingProvider) Generate(context.Context, *provider.Request) (*provider.Response, error) {
	return nil, &provider.Error{Provider: "failing", StatusCode: 500, Err: errors.New("upstream down")}
}

type testEnv struct {
	ts     *httptest.Server
	typing *typing.MemStore
	orch   *chat.Orchestrator
}

// newTestServer wires the handler with in-memory stores and the given provider.
func newTestServer(t *testing.T, p provider.Provider) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	users := memstore.NewUsers()
	turns := memstore.NewTurns()
	facts := memory.NewService(memstore.NewFacts(), logger)
	protocols := memstore.NewProtocols()
	typingStore := typing.NewMemStore()

	orch := chat.New(chat.DefaultConfig(), chat.Deps{
		Users:     users,
		Turns:     turns,
		Memory:    facts,
		Protocols: protocols,
		Provider:  p,
		Typing:    typingStore,
	}, logger)

	h := NewHandler(Deps{
		Users:     users,
		Turns:     turns,
		Memory:    facts,
		Protocols: protocols,
		Typing:    typingStore,
		Chat:      orch,
		Database:  func(context.Context) error { return nil },
	}, logger)

	ts := httptest.NewServer(h.Router())
	t.Cleanup(func() {
		ts.Close()
		orch.Wait()
	})
	return &testEnv{ts: ts, typing: typingStore, orch: orch}
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, ts.URL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	return doJSON(t, ts, http.MethodPost, path, body)
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected %d, got %d", want, resp.StatusCode)
	}
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	env := newTestServer(t, provider.NewDemoProvider())

	resp := getJSON(t, env.ts, "/health")
	expectStatus(t, resp, http.StatusOK)
	var body map[string]interface{}
	decodeJSON(t, resp, &body)
	if body["status"] != "healthy" || body["database"] != "healthy" {
		t.Errorf("unexpected health body %v", body)
	}
	if body["redis"] != "not_configured" {
		t.Errorf("expected redis not_configured, got %v", body["redis"])
	}
}

func TestCreateAndGetUser(t *testing.T) {
	env := newTestServer(t, provider.NewDemoProvider())

	resp := postJSON(t, env.ts, "/api/users", map[string]string{"username": "priya", "full_name": "Priya S"})
	expectStatus(t, resp, http.StatusCreated)
	var created map[string]interface{}
	decodeJSON(t, resp, &created)
	if created["full_name"] != "Priya S" || created["onboarding_completed"] != false {
		t.Fatalf("created = %v", created)
	}

	resp = getJSON(t, env.ts, "/api/users/me?username=priya")
	expectStatus(t, resp, http.StatusOK)
	var me map[string]interface{}
	decodeJSON(t, resp, &me)
	if me["id"] != created["id"] {
		t.Fatalf("me id %v != created id %v", me["id"], created["id"])
	}
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestServer(t, provider.NewDemoProvider())

	resp := postJSON(t, env.ts, "/api/users", map[string]string{"username": "ab"})
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()

	resp = getJSON(t, env.ts, "/api/users/me?username=x")
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestOnboarding(t *testing.T) {
	env := newTestServer(t, provider.NewDemoProvider())

	resp := doJSON(t, env.ts, http.MethodPut, "/api/users/me/onboarding", map[string]interface{}{
		"age":                28,
		"gender":             "female",
		"weight":             60,
		"medical_conditions": []string{"thyroid"},
	})
	expectStatus(t, resp, http.StatusOK)
	var u map[string]interface{}
	decodeJSON(t, resp, &u)
	if u["onboarding_completed"] != true || u["age"] != float64(28) {
		t.Fatalf("user = %v", u)
	}

	resp = doJSON(t, env.ts, http.MethodPut, "/api/users/me/onboarding", map[string]interface{}{"age": 200})
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()

	resp = doJSON(t, env.ts, http.MethodPut, "/api/users/me/onboarding", map[string]interface{}{"weight": 0})
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()
}

func TestChatDemoGreeting(t *testing.T) {
	env := newTestServer(t, provider.NewDemoProvider())

	resp := postJSON(t, env.ts, "/api/chat?username=rahul", map[string]string{"message": "Hi"})
	expectStatus(t, resp, http.StatusOK)

	var body struct {
		UserMessage struct {
			Content string `json:"content"`
			Role    string `json:"role"`
		} `json:"user_message"`
		AssistantMessage struct {
			Content  string                 `json:"content"`
			Role     string                 `json:"role"`
			Metadata map[string]interface{} `json:"message_metadata"`
		} `json:"assistant_message"`
		ContextUsed struct {
			Protocols     []string `json:"protocols"`
			MemoriesCount int      `json:"memories_count"`
		} `json:"context_used"`
	}
	decodeJSON(t, resp, &body)

	if body.UserMessage.Content != "Hi" || body.UserMessage.Role != "user" {
		t.Errorf("user message = %+v", body.UserMessage)
	}
	if body.AssistantMessage.Role != "assistant" || body.AssistantMessage.Metadata["demo_mode"] != true {
		t.Errorf("assistant message = %+v", body.AssistantMessage)
	}
	if body.ContextUsed.Protocols == nil {
		t.Errorf("context_used.protocols should be a list")
	}
}

func TestChatRejectsBlankMessage(t *testing.T) {
	env := newTestServer(t, provider.NewDemoProvider())

	for _, msg := range []string{"", "   "} {
		resp := postJSON(t, env.ts, "/api/chat", map[string]string{"message": msg})
		expectStatus(t, resp, http.StatusUnprocessableEntity)
		resp.Body.Close()
	}
}

func TestChatProviderFailure(t *testing.T) {
	env := newTestServer(t, failingProvider{})

	resp := postJSON(t, env.ts, "/api/chat?username=rahul", map[string]string{"message": "hello"})
	expectStatus(t, resp, http.StatusBadGateway)
	resp.Body.Close()

	resp = getJSON(t, env.ts, "/api/typing?username=rahul")
	expectStatus(t, resp, http.StatusOK)
	var st map[string]interface{}
	decodeJSON(t, resp, &st)
	if st["is_typing"] != false {
		t.Fatalf("typing left on: %v", st)
	}

	resp = getJSON(t, env.ts, "/api/messages?username=rahul")
	var page map[string]interface{}
	decodeJSON(t, resp, &page)
	if page["total"] != float64(1) {
		t.Fatalf("expected only the user turn, got %v", page["total"])
	}
}

func TestMessagesPagination(t *testing.T) {
	env := newTestServer(t, provider.NewDemoProvider())

	for i := 0; i < 3; i++ {
		resp := postJSON(t, env.ts, "/api/chat?username=anita", map[string]string{"message": fmt.Sprintf("note %d", i)})
		expectStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	resp := getJSON(t, env.ts, "/api/messages?username=anita&limit=4")
	expectStatus(t, resp, http.StatusOK)
	var page struct {
		Messages   []map[string]interface{} `json:"messages"`
		Total      int                      `json:"total"`
		HasMore    bool                     `json:"has_more"`
		NextCursor *int64                   `json:"next_cursor"`
	}
	decodeJSON(t, resp, &page)
	if len(page.Messages) != 4 || page.Total != 6 || !page.HasMore || page.NextCursor == nil {
		t.Fatalf("page = %+v", page)
	}

	resp = getJSON(t, env.ts, fmt.Sprintf("/api/messages?username=anita&limit=4&before_id=%d", *page.NextCursor))
	decodeJSON(t, resp, &page)
	if len(page.Messages) != 2 || page.HasMore {
		t.Fatalf("second page = %+v", page)
	}

	for _, q := range []string{"limit=0", "limit=101", "limit=abc", "before_id=x"} {
		resp := getJSON(t, env.ts, "/api/messages?"+q)
		expectStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	}
}

func TestTypingEndpoints(t *testing.T) {
	env := newTestServer(t, provider.NewDemoProvider())

	resp := getJSON(t, env.ts, "/api/typing")
	var st map[string]interface{}
	decodeJSON(t, resp, &st)
	if st["is_typing"] != false || st["updated_at"] == nil {
		t.Fatalf("initial typing = %v", st)
	}

	resp = postJSON(t, env.ts, "/api/typing", map[string]bool{"is_typing": true})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = getJSON(t, env.ts, "/api/typing")
	decodeJSON(t, resp, &st)
	if st["is_typing"] != true {
		t.Fatalf("typing = %v", st)
	}

	resp = postJSON(t, env.ts, "/api/typing", map[string]string{})
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()
}

func TestMemoriesEndpoints(t *testing.T) {
	env := newTestServer(t, provider.NewDemoProvider())

	resp := postJSON(t, env.ts, "/api/memories", map[string]interface{}{
		"category": "health_goal", "key": "primary_goal", "value": "lose weight", "importance": 3,
	})
	expectStatus(t, resp, http.StatusOK)
	var first map[string]interface{}
	decodeJSON(t, resp, &first)

	resp = postJSON(t, env.ts, "/api/memories", map[string]interface{}{
		"category": "health_goal", "key": "primary_goal", "value": "lose 5kg", "importance": 4,
	})
	var second map[string]interface{}
	decodeJSON(t, resp, &second)
	if first["id"] != second["id"] {
		t.Fatalf("upsert changed id: %v -> %v", first["id"], second["id"])
	}

	resp = getJSON(t, env.ts, "/api/memories")
	var all []map[string]interface{}
	decodeJSON(t, resp, &all)
	if len(all) != 1 || all[0]["value"] != "lose 5kg" || all[0]["importance"] != float64(4) {
		t.Fatalf("memories = %v", all)
	}

	resp = postJSON(t, env.ts, "/api/memories", map[string]interface{}{
		"category": "concern", "key": "k", "value": "v", "importance": 7,
	})
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()
}

func TestProtocolsSeedAndList(t *testing.T) {
	env := newTestServer(t, provider.NewDemoProvider())

	resp := postJSON(t, env.ts, "/api/protocols/seed", nil)
	expectStatus(t, resp, http.StatusOK)
	var seeded map[string]interface{}
	decodeJSON(t, resp, &seeded)
	if seeded["added"] != float64(5) {
		t.Fatalf("seed = %v", seeded)
	}

	resp = postJSON(t, env.ts, "/api/protocols/seed", nil)
	decodeJSON(t, resp, &seeded)
	if seeded["added"] != float64(0) {
		t.Fatalf("reseed = %v", seeded)
	}

	resp = getJSON(t, env.ts, "/api/protocols")
	var list []map[string]interface{}
	decodeJSON(t, resp, &list)
	if len(list) != 5 || list[0]["name"] != "Emergency Symptoms" {
		t.Fatalf("protocols = %v", list)
	}
}

func TestChatUsesSeededProtocols(t *testing.T) {
	env := newTestServer(t, provider.NewDemoProvider())

	resp := postJSON(t, env.ts, "/api/protocols/seed", nil)
	resp.Body.Close()

	resp = postJSON(t, env.ts, "/api/chat", map[string]string{"message": "I have a fever and headache"})
	expectStatus(t, resp, http.StatusOK)
	var body struct {
		ContextUsed struct {
			Protocols []string `json:"protocols"`
		} `json:"context_used"`
	}
	decodeJSON(t, resp, &body)
	if len(body.ContextUsed.Protocols) != 2 || body.ContextUsed.Protocols[0] != "Fever Management" {
		t.Fatalf("protocols = %v", body.ContextUsed.Protocols)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t, provider.NewDemoProvider())

	resp := getJSON(t, env.ts, "/health")
	resp.Body.Close()

	resp = getJSON(t, env.ts, "/metrics")
	expectStatus(t, resp, http.StatusOK)
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !bytes.Contains(buf.Bytes(), []byte("disha_http_requests_total")) {
		t.Fatalf("metrics output missing request counter")
	}
}
