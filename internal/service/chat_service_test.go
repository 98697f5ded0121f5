package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"campus-tutor-go/internal/config"
	"campus-tutor-go/internal/model"
	"campus-tutor-go/pkg/llm"
)

type fakeEmbedder struct {
	calls  int
	vector []float32
	err    error
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

type fakeRetriever struct {
	chunks []model.RetrievedChunk
	err    error
	lastK  int
}

func (f *fakeRetriever) Search(ctx context.Context, vector []float32, k int) ([]model.RetrievedChunk, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type fakeLLM struct {
	response    string
	err         error
	lastPrompt  string
	lastHistory []llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, prompt string) (string, error) {
	f.lastHistory = history
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeLLM) Close() {}

type fakeConversationRepo struct {
	histories map[string][]model.Turn
	getErr    error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{histories: make(map[string][]model.Turn)}
}

func (f *fakeConversationRepo) GetHistory(ctx context.Context, identity string) ([]model.Turn, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.histories[identity], nil
}

func (f *fakeConversationRepo) UpdateHistory(ctx context.Context, identity string, turns []model.Turn) error {
	f.histories[identity] = turns
	return nil
}

func (f *fakeConversationRepo) ClearHistory(ctx context.Context, identity string) error {
	delete(f.histories, identity)
	return nil
}

type fakeInteractionRepo struct {
	created []model.InteractionRecord
}

func (f *fakeInteractionRepo) Create(record *model.InteractionRecord) error {
	f.created = append(f.created, *record)
	return nil
}

func (f *fakeInteractionRepo) List(offset, limit int) ([]model.InteractionRecord, int64, error) {
	return f.created, int64(len(f.created)), nil
}

func (f *fakeInteractionRepo) ListByIdentity(identity string, offset, limit int) ([]model.InteractionRecord, int64, error) {
	var out []model.InteractionRecord
	for _, r := range f.created {
		if r.Identity == identity {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}

type chatFixture struct {
	svc          ChatService
	embedder     *fakeEmbedder
	retriever    *fakeRetriever
	llmClient    *fakeLLM
	conversation *fakeConversationRepo
	interactions *fakeInteractionRepo
}

func newChatFixture(filterCfg config.FilterConfig) *chatFixture {
	f := &chatFixture{
		embedder:     &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}},
		retriever:    &fakeRetriever{},
		llmClient:    &fakeLLM{response: "导数描述函数的瞬时变化率。"},
		conversation: newFakeConversationRepo(),
		interactions: &fakeInteractionRepo{},
	}
	f.svc = NewChatService(
		f.embedder,
		f.retriever,
		f.llmClient,
		f.conversation,
		f.interactions,
		config.LLMConfig{},
		filterCfg,
	)
	return f
}

func retrievedChunk(fileName, text string) model.RetrievedChunk {
	return model.RetrievedChunk{
		Text:     text,
		Score:    0.9,
		Metadata: model.ChunkMetadata{FileName: fileName},
	}
}

func TestSendMessageWithContext(t *testing.T) {
	f := newChatFixture(config.FilterConfig{})
	f.retriever.chunks = []model.RetrievedChunk{
		retrievedChunk("lecture01.txt", "导数的定义是极限。"),
		retrievedChunk("lecture02.txt", "链式法则用于复合函数。"),
	}

	result, err := f.svc.SendMessage(context.Background(), "student@example.edu", "什么是导数?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !result.ContextUsed || result.ContextChunks != 2 {
		t.Errorf("contextUsed=%v chunks=%d, want true/2", result.ContextUsed, result.ContextChunks)
	}

	// 增强 prompt 用分隔标记包住检索内容，并以学生原话收尾
	if !strings.Contains(f.llmClient.lastPrompt, defaultRefStart) || !strings.Contains(f.llmClient.lastPrompt, defaultRefEnd) {
		t.Errorf("augmented prompt missing delimiters: %q", f.llmClient.lastPrompt)
	}
	if !strings.Contains(f.llmClient.lastPrompt, "导数的定义是极限。") {
		t.Errorf("augmented prompt missing retrieved chunk")
	}
	if !strings.HasSuffix(f.llmClient.lastPrompt, "什么是导数?") {
		t.Errorf("augmented prompt does not end with original question: %q", f.llmClient.lastPrompt)
	}

	// 默认 top-K
	if f.retriever.lastK != defaultTopK {
		t.Errorf("retriever k = %d, want %d", f.retriever.lastK, defaultTopK)
	}

	// 历史追加了 user/model 两轮并已持久化
	saved := f.conversation.histories["student@example.edu"]
	if len(saved) != 2 {
		t.Fatalf("saved history turns = %d, want 2", len(saved))
	}
	if saved[0].Role != model.RoleUser || saved[0].Text != "什么是导数?" {
		t.Errorf("first turn = %+v", saved[0])
	}
	if saved[1].Role != model.RoleModel || saved[1].Text != result.Response {
		t.Errorf("second turn = %+v", saved[1])
	}

	// 审计记录落库
	if len(f.interactions.created) != 1 {
		t.Fatalf("interaction records = %d, want 1", len(f.interactions.created))
	}
	if rec := f.interactions.created[0]; !rec.ContextUsed || rec.ContextChunks != 2 {
		t.Errorf("interaction record = %+v", rec)
	}
}

func TestSendMessageNoRetrievalHits(t *testing.T) {
	f := newChatFixture(config.FilterConfig{})
	f.retriever.chunks = nil

	result, err := f.svc.SendMessage(context.Background(), "student@example.edu", "什么是导数?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.ContextUsed || result.ContextChunks != 0 {
		t.Errorf("contextUsed=%v chunks=%d, want false/0", result.ContextUsed, result.ContextChunks)
	}
	// 没有上下文时提交学生原话，不加分隔标记
	if f.llmClient.lastPrompt != "什么是导数?" {
		t.Errorf("prompt = %q, want raw question", f.llmClient.lastPrompt)
	}
}

func TestSendMessageDropsBlankChunks(t *testing.T) {
	f := newChatFixture(config.FilterConfig{})
	f.retriever.chunks = []model.RetrievedChunk{
		retrievedChunk("a.txt", "   \n\t"),
		retrievedChunk("b.txt", "有效内容。"),
	}

	result, err := f.svc.SendMessage(context.Background(), "student@example.edu", "问题?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.ContextChunks != 1 {
		t.Errorf("contextChunks = %d, want 1 after dropping blanks", result.ContextChunks)
	}
}

func TestSendMessageHistoryTranslation(t *testing.T) {
	f := newChatFixture(config.FilterConfig{})
	f.conversation.histories["student@example.edu"] = []model.Turn{
		{Role: model.RoleUser, Text: "第一问"},
		{Role: model.RoleModel, Text: "第一答"},
	}

	if _, err := f.svc.SendMessage(context.Background(), "student@example.edu", "第二问"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(f.llmClient.lastHistory) != 2 {
		t.Fatalf("llm history length = %d, want 2", len(f.llmClient.lastHistory))
	}
	if f.llmClient.lastHistory[0].Role != "user" || f.llmClient.lastHistory[1].Role != "model" {
		t.Errorf("llm history roles = %q/%q", f.llmClient.lastHistory[0].Role, f.llmClient.lastHistory[1].Role)
	}

	saved := f.conversation.histories["student@example.edu"]
	if len(saved) != 4 {
		t.Errorf("saved history turns = %d, want 4", len(saved))
	}
}

func TestSendMessageContentFilter(t *testing.T) {
	f := newChatFixture(config.FilterConfig{
		Patterns:        []string{`(?i)write my essay`},
		RedirectMessage: "试着自己拆解问题。",
	})

	result, err := f.svc.SendMessage(context.Background(), "student@example.edu", "please WRITE MY ESSAY for tomorrow")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Response != "试着自己拆解问题。" {
		t.Errorf("response = %q, want redirect message", result.Response)
	}
	if result.ContextUsed {
		t.Error("contextUsed = true on filtered prompt")
	}
	// 命中过滤时不触达任何外部服务
	if f.embedder.calls != 0 {
		t.Errorf("embedder called %d times on filtered prompt", f.embedder.calls)
	}
}

func TestSendMessageInvalidFilterPatternSkipped(t *testing.T) {
	// 非法正则在构造时被丢弃，服务照常工作
	f := newChatFixture(config.FilterConfig{Patterns: []string{`([`, `(?i)write my essay`}})

	if _, err := f.svc.SendMessage(context.Background(), "student@example.edu", "什么是导数?"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
}

func TestSendMessageGenerationFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*chatFixture)
	}{
		{"embedding failure", func(f *chatFixture) { f.embedder.err = errors.New("api down") }},
		{"retrieval failure", func(f *chatFixture) { f.retriever.err = errors.New("es down") }},
		{"llm failure", func(f *chatFixture) { f.llmClient.err = errors.New("gemini down") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatFixture(config.FilterConfig{})
			tt.setup(f)
			if _, err := f.svc.SendMessage(context.Background(), "student@example.edu", "问题?"); !errors.Is(err, ErrGeneration) {
				t.Errorf("err = %v, want ErrGeneration", err)
			}
		})
	}
}

func TestSendMessageHistoryLoadFailureTolerated(t *testing.T) {
	f := newChatFixture(config.FilterConfig{})
	f.conversation.getErr = errors.New("connection refused")

	result, err := f.svc.SendMessage(context.Background(), "student@example.edu", "问题?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if result.Response == "" {
		t.Error("empty response despite history load failure")
	}
	if len(f.llmClient.lastHistory) != 0 {
		t.Errorf("llm history length = %d, want 0 when load fails", len(f.llmClient.lastHistory))
	}
}

func TestClearHistory(t *testing.T) {
	f := newChatFixture(config.FilterConfig{})
	f.conversation.histories["student@example.edu"] = []model.Turn{{Role: model.RoleUser, Text: "旧问题"}}

	if err := f.svc.ClearHistory(context.Background(), "student@example.edu"); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	history, err := f.svc.History(context.Background(), "student@example.edu")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history after clear = %d turns, want 0", len(history))
	}
}
