package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	testhelpers "helioshq/meridian/internal/backends"
	"helioshq/meridian/pkg/backends"
)

// mockExecutor records calls and serves canned responses.
type mockExecutor struct {
	mu          sync.Mutex
	completions []*backends.CompletionRequest
	embeds      []*backends.EmbeddingRequest

	completeErr error
	embedErr    error
	delay       time.Duration
	dims        int
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{dims: 4}
}

func (m *mockExecutor) Complete(ctx context.Context, req *backends.CompletionRequest) (*backends.CompletionResponse, error) {
	m.mu.Lock()
	m.completions = append(m.completions, req)
	err := m.completeErr
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &backends.CompletionResponse{
		Model:   req.Model,
		Content: "batched response",
		Usage:   backends.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

func (m *mockExecutor) Embed(ctx context.Context, req *backends.EmbeddingRequest) (*backends.EmbeddingResponse, error) {
	m.mu.Lock()
	m.embeds = append(m.embeds, req)
	err := m.embedErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	resp := &backends.EmbeddingResponse{
		Model:   req.Model,
		Backend: backends.KindLocal,
		Usage:   backends.TokenUsage{PromptTokens: len(req.Texts) * 10, TotalTokens: len(req.Texts) * 10},
	}
	for i := range req.Texts {
		vec := make([]float64, m.dims)
		vec[0] = float64(i)
		resp.Embeddings = append(resp.Embeddings, vec)
	}
	return resp, nil
}

func (m *mockExecutor) completionCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.completions)
}

func (m *mockExecutor) embedCalls() []*backends.EmbeddingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*backends.EmbeddingRequest(nil), m.embeds...)
}

func testConfig(strategy string) Config {
	return Config{
		Strategy: strategy,
		Tick:     5 * time.Millisecond,
	}
}

func completionItem(priority Priority, model string) *Item {
	return NewItem(CompletionPayload{Request: &backends.CompletionRequest{
		Model:    model,
		Messages: []backends.Message{{Role: backends.RoleUser, Content: "hello"}},
	}}, priority)
}

func TestSubmitWaitReturnsResult(t *testing.T) {
	exec := newMockExecutor()
	s := New(exec, testConfig(StrategyImmediate))
	s.Start()
	defer s.Stop()

	res, err := s.Submit(context.Background(), completionItem(PriorityNormal, backends.ModelGPT4o), true)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Err != nil {
		t.Fatalf("result error = %v", res.Err)
	}
	if res.Completion == nil || res.Completion.Content != "batched response" {
		t.Errorf("unexpected completion: %+v", res.Completion)
	}
	if res.BatchID == "" {
		t.Error("expected a batch id on the result")
	}
}

func TestSubmitRejectsNilPayload(t *testing.T) {
	s := New(newMockExecutor(), testConfig(StrategyImmediate))
	s.Start()
	defer s.Stop()

	if _, err := s.Submit(context.Background(), &Item{ID: "x"}, true); !errors.Is(err, ErrNilPayload) {
		t.Errorf("Submit() error = %v, want ErrNilPayload", err)
	}
}

func TestSubmitRequiresRunningScheduler(t *testing.T) {
	s := New(newMockExecutor(), testConfig(StrategyImmediate))

	if _, err := s.Submit(context.Background(), completionItem(PriorityNormal, ""), true); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Submit() error = %v, want ErrNotRunning", err)
	}
}

func TestHybridBatchesLowPriorityItemsTogether(t *testing.T) {
	exec := newMockExecutor()
	cfg := testConfig(StrategyHybrid)
	cfg.MaxBatchSize = 3
	cfg.MaxWait = 50 * time.Millisecond
	s := New(exec, cfg)
	s.Start()
	defer s.Stop()

	// Low priority scores 0.6 from the priority term alone, so nothing
	// flushes until the size and wait terms push past 1.0. Three items
	// fill the batch and land together.
	items := make([]*Item, 3)
	for i := range items {
		items[i] = completionItem(PriorityLow, backends.ModelGPT4o)
		if _, err := s.Submit(context.Background(), items[i], false); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	results := make([]*Result, 3)
	for i, item := range items {
		select {
		case results[i] = <-item.Result():
		case <-time.After(2 * time.Second):
			t.Fatalf("item %d result not delivered", i)
		}
	}

	batchID := results[0].BatchID
	for i, res := range results {
		if res.Err != nil {
			t.Fatalf("item %d error = %v", i, res.Err)
		}
		if res.BatchID != batchID {
			t.Errorf("item %d batch id = %s, want %s", i, res.BatchID, batchID)
		}
	}

	snap := s.Stats()
	if snap.TotalBatches != 1 {
		t.Errorf("TotalBatches = %d, want 1", snap.TotalBatches)
	}
	if snap.AvgBatchSize != 3 {
		t.Errorf("AvgBatchSize = %v, want 3", snap.AvgBatchSize)
	}
}

func TestEmbeddingBatchMergesRequests(t *testing.T) {
	exec := newMockExecutor()
	cfg := testConfig(StrategySizeBased)
	cfg.MaxBatchSize = 2
	s := New(exec, cfg)
	s.Start()
	defer s.Stop()

	first := NewItem(EmbeddingPayload{Request: &backends.EmbeddingRequest{
		Texts: []string{"a", "b"}, Model: backends.ModelEmbedding3Small,
	}}, PriorityNormal)
	second := NewItem(EmbeddingPayload{Request: &backends.EmbeddingRequest{
		Texts: []string{"c", "d", "e"}, Model: backends.ModelEmbedding3Small,
	}}, PriorityNormal)

	for _, item := range []*Item{first, second} {
		if _, err := s.Submit(context.Background(), item, false); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	var res1, res2 *Result
	select {
	case res1 = <-first.Result():
	case <-time.After(2 * time.Second):
		t.Fatal("first result not delivered")
	}
	select {
	case res2 = <-second.Result():
	case <-time.After(2 * time.Second):
		t.Fatal("second result not delivered")
	}

	calls := exec.embedCalls()
	if len(calls) != 1 {
		t.Fatalf("embed calls = %d, want 1 merged call", len(calls))
	}
	if len(calls[0].Texts) != 5 {
		t.Errorf("merged texts = %d, want 5", len(calls[0].Texts))
	}

	if res1.Err != nil || res2.Err != nil {
		t.Fatalf("result errors: %v, %v", res1.Err, res2.Err)
	}
	if len(res1.Embedding.Embeddings) != 2 {
		t.Errorf("first item vectors = %d, want 2", len(res1.Embedding.Embeddings))
	}
	if len(res2.Embedding.Embeddings) != 3 {
		t.Errorf("second item vectors = %d, want 3", len(res2.Embedding.Embeddings))
	}

	// Vector order must survive the merge and split. The mock stamps the
	// merged index into the first component.
	if got := res2.Embedding.Embeddings[0][0]; got != 2 {
		t.Errorf("second item first vector index = %v, want 2", got)
	}
	if got := res2.Embedding.Embeddings[2][0]; got != 4 {
		t.Errorf("second item last vector index = %v, want 4", got)
	}

	if snap := s.Stats(); snap.CostSavings <= 0 {
		t.Error("expected positive cost savings after a merged embedding batch")
	}
}

func TestEmbeddingBatchFailureFailsAllItems(t *testing.T) {
	exec := newMockExecutor()
	exec.embedErr = fmt.Errorf("upstream unavailable")
	cfg := testConfig(StrategySizeBased)
	cfg.MaxBatchSize = 2
	s := New(exec, cfg)
	s.Start()
	defer s.Stop()

	items := []*Item{
		NewItem(EmbeddingPayload{Request: &backends.EmbeddingRequest{Texts: []string{"a"}}}, PriorityNormal),
		NewItem(EmbeddingPayload{Request: &backends.EmbeddingRequest{Texts: []string{"b"}}}, PriorityNormal),
	}
	for _, item := range items {
		if _, err := s.Submit(context.Background(), item, false); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	for i, item := range items {
		select {
		case res := <-item.Result():
			if res.Err == nil {
				t.Errorf("item %d: expected failure result", i)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("item %d result not delivered", i)
		}
	}
}

func TestGenerationItemRoutesAsCompletion(t *testing.T) {
	exec := newMockExecutor()
	s := New(exec, testConfig(StrategyImmediate))
	s.Start()
	defer s.Stop()

	item := NewItem(GenerationPayload{
		ContentType: "explanation",
		Persona:     "You are a patient tutor.",
		Prompt:      "Explain photosynthesis.",
		Model:       backends.ModelGPT4Turbo,
		User:        "user-1",
	}, PriorityHigh)

	res, err := s.Submit(context.Background(), item, true)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Err != nil {
		t.Fatalf("result error = %v", res.Err)
	}
	if res.Generation == nil {
		t.Fatal("expected a generation result")
	}

	exec.mu.Lock()
	req := exec.completions[0]
	exec.mu.Unlock()
	if len(req.Messages) != 2 {
		t.Fatalf("messages = %d, want persona plus prompt", len(req.Messages))
	}
	if req.Messages[0].Role != backends.RoleSystem || req.Messages[0].Content != "You are a patient tutor." {
		t.Errorf("unexpected system message: %+v", req.Messages[0])
	}
	if req.Messages[1].Role != backends.RoleUser {
		t.Errorf("unexpected user message: %+v", req.Messages[1])
	}
	if req.User != "user-1" {
		t.Errorf("user = %q, want user-1", req.User)
	}
}

func TestConcurrentBatchLimitDefersAdmission(t *testing.T) {
	exec := newMockExecutor()
	exec.delay = 150 * time.Millisecond
	cfg := testConfig(StrategyImmediate)
	cfg.MaxConcurrentBatches = 1
	s := New(exec, cfg)
	s.Start()
	defer s.Stop()

	first := completionItem(PriorityNormal, backends.ModelGPT4o)
	if _, err := s.Submit(context.Background(), first, false); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	testhelpers.WaitForCondition(t, time.Second, func() bool {
		return s.Stats().ActiveBatches == 1
	}, "first batch active")

	second := completionItem(PriorityNormal, backends.ModelGPT4o)
	if _, err := s.Submit(context.Background(), second, false); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// The second item must stay queued while the first batch is running.
	time.Sleep(50 * time.Millisecond)
	if snap := s.Stats(); snap.TotalQueued != 1 {
		t.Errorf("TotalQueued = %d, want 1 while at the concurrency limit", snap.TotalQueued)
	}

	for i, item := range []*Item{first, second} {
		select {
		case res := <-item.Result():
			if res.Err != nil {
				t.Errorf("item %d error = %v", i, res.Err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("item %d result not delivered", i)
		}
	}
}

func TestStopFailsPendingItems(t *testing.T) {
	cfg := testConfig(StrategySizeBased)
	cfg.MaxBatchSize = 100 // nothing ever admits
	s := New(newMockExecutor(), cfg)
	s.Start()

	item := completionItem(PriorityNormal, "")
	if _, err := s.Submit(context.Background(), item, false); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	s.Stop()

	select {
	case res := <-item.Result():
		if !errors.Is(res.Err, ErrNotRunning) {
			t.Errorf("result error = %v, want ErrNotRunning", res.Err)
		}
	default:
		t.Fatal("pending item not failed at shutdown")
	}
}

func TestRetune(t *testing.T) {
	s := New(newMockExecutor(), testConfig(StrategyHybrid))

	if err := s.Retune(Config{Strategy: "aggressive"}); err == nil {
		t.Error("expected an error for an unknown strategy")
	}

	if err := s.Retune(Config{Strategy: StrategyTimeBased, MaxWait: time.Second}); err != nil {
		t.Fatalf("Retune() error = %v", err)
	}
	if got := s.Stats().Strategy; got != StrategyTimeBased {
		t.Errorf("strategy = %s, want %s", got, StrategyTimeBased)
	}
}

func TestStatsTracksPriorityDistribution(t *testing.T) {
	cfg := testConfig(StrategySizeBased)
	cfg.MaxBatchSize = 100
	s := New(newMockExecutor(), cfg)
	s.Start()

	for _, p := range []Priority{PriorityLow, PriorityNormal, PriorityNormal, PriorityUrgent} {
		if _, err := s.Submit(context.Background(), completionItem(p, ""), false); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	snap := s.Stats()
	if snap.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", snap.TotalRequests)
	}
	if snap.Priorities["normal"] != 2 {
		t.Errorf("normal submissions = %d, want 2", snap.Priorities["normal"])
	}
	if snap.Queues[KindCompletion]["urgent"] != 1 {
		t.Errorf("urgent queue depth = %d, want 1", snap.Queues[KindCompletion]["urgent"])
	}

	s.Stop()
}

type mockObserver struct {
	mu      sync.Mutex
	batches []int
	depths  map[string]int
}

func (o *mockObserver) ObserveBatch(kind string, size int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches = append(o.batches, size)
}

func (o *mockObserver) SetQueueDepth(kind string, depth int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.depths == nil {
		o.depths = make(map[string]int)
	}
	o.depths[kind] = depth
}

func TestObserverSeesBatches(t *testing.T) {
	obs := &mockObserver{}
	s := New(newMockExecutor(), testConfig(StrategyImmediate))
	s.SetObserver(obs)
	s.Start()
	defer s.Stop()

	item := completionItem(PriorityNormal, "")
	if _, err := s.Submit(context.Background(), item, true); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	testhelpers.WaitForCondition(t, time.Second, func() bool {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return len(obs.batches) == 1
	}, "observer never saw the batch")

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.batches[0] != 1 {
		t.Errorf("observed batch size = %d, want 1", obs.batches[0])
	}
	if _, ok := obs.depths[string(KindCompletion)]; !ok {
		t.Error("expected a completion queue depth sample")
	}
}

// panicExecutor blows up on every call.
type panicExecutor struct{}

func (panicExecutor) Complete(ctx context.Context, req *backends.CompletionRequest) (*backends.CompletionResponse, error) {
	panic("executor exploded")
}

func (panicExecutor) Embed(ctx context.Context, req *backends.EmbeddingRequest) (*backends.EmbeddingResponse, error) {
	panic("executor exploded")
}

func TestBatchPanicFailsAllItems(t *testing.T) {
	s := New(panicExecutor{}, testConfig(StrategyImmediate))
	s.Start()
	defer s.Stop()

	first := completionItem(PriorityNormal, "")
	second := completionItem(PriorityNormal, "")
	if _, err := s.Submit(context.Background(), first, false); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := s.Submit(context.Background(), second, false); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	for _, item := range []*Item{first, second} {
		select {
		case res := <-item.Result():
			if !errors.Is(res.Err, ErrBatchPanicked) {
				t.Errorf("res.Err = %v, want ErrBatchPanicked", res.Err)
			}
		case <-time.After(time.Second):
			t.Fatal("item never received a result after executor panic")
		}
	}
}

func TestSubmitDuringStopNeverOrphansItems(t *testing.T) {
	for i := 0; i < 20; i++ {
		s := New(newMockExecutor(), testConfig(StrategyImmediate))
		s.Start()

		item := completionItem(PriorityNormal, "")
		done := make(chan struct{})
		var submitErr error
		go func() {
			defer close(done)
			_, submitErr = s.Submit(context.Background(), item, false)
		}()
		s.Stop()
		<-done

		if submitErr != nil {
			if !errors.Is(submitErr, ErrNotRunning) {
				t.Fatalf("Submit() error = %v", submitErr)
			}
			continue
		}
		// Accepted items must be resolved, whether the batch ran or the
		// shutdown drain failed them.
		select {
		case <-item.Result():
		case <-time.After(time.Second):
			t.Fatal("accepted item never received a result")
		}
	}
}
