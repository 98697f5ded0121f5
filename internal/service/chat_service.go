package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"campus-tutor-go/internal/config"
	"campus-tutor-go/internal/model"
	"campus-tutor-go/internal/repository"
	"campus-tutor-go/pkg/embedding"
	"campus-tutor-go/pkg/llm"
	"campus-tutor-go/pkg/log"
	"campus-tutor-go/pkg/vectorindex"
)

// ErrGeneration 表示向量化、检索或生成任一环节失败。
// 本层不做重试；宁可不给答案也不给半截答案。
var ErrGeneration = errors.New("生成回答失败")

const (
	defaultTopK           = 3
	defaultTimeoutSeconds = 30
	defaultRefStart       = "--- COURSE MATERIAL START ---"
	defaultRefEnd         = "--- COURSE MATERIAL END ---"
)

// Retriever 抽象了向量索引的相似度检索。
type Retriever interface {
	Search(ctx context.Context, vector []float32, k int) ([]model.RetrievedChunk, error)
}

// ESRetriever 是 Retriever 的 Elasticsearch 实现。
type ESRetriever struct {
	IndexName string
}

func (r ESRetriever) Search(ctx context.Context, vector []float32, k int) ([]model.RetrievedChunk, error) {
	return vectorindex.SearchSimilar(ctx, r.IndexName, vector, k)
}

// ChatResult 是一次问答的完整结果。
type ChatResult struct {
	Response      string       `json:"response"`
	History       []model.Turn `json:"history"`
	ContextUsed   bool         `json:"contextUsed"`
	ContextChunks int          `json:"contextChunks"`
}

// ChatService 定义了检索增强问答的接口。
type ChatService interface {
	// SendMessage 执行一轮完整的检索增强问答并更新对话历史。
	SendMessage(ctx context.Context, identity, prompt string) (*ChatResult, error)
	// ClearHistory 清空指定身份的对话历史。
	ClearHistory(ctx context.Context, identity string) error
	// History 返回指定身份当前的对话历史。
	History(ctx context.Context, identity string) ([]model.Turn, error)
}

type chatService struct {
	embeddingClient  embedding.Client
	retriever        Retriever
	llmClient        llm.Client
	conversationRepo repository.ConversationRepository
	interactionRepo  repository.InteractionRepository
	llmCfg           config.LLMConfig
	filterPatterns   []*regexp.Regexp
	redirectMessage  string
}

// NewChatService 创建一个新的 ChatService 实例。
// 非法的过滤正则在启动时丢弃并告警，而不是让服务起不来。
func NewChatService(
	embeddingClient embedding.Client,
	retriever Retriever,
	llmClient llm.Client,
	conversationRepo repository.ConversationRepository,
	interactionRepo repository.InteractionRepository,
	llmCfg config.LLMConfig,
	filterCfg config.FilterConfig,
) ChatService {
	patterns := make([]*regexp.Regexp, 0, len(filterCfg.Patterns))
	for _, p := range filterCfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			log.Warnf("[ChatService] 非法的内容过滤正则 '%s': %v", p, err)
			continue
		}
		patterns = append(patterns, re)
	}
	redirect := filterCfg.RedirectMessage
	if redirect == "" {
		redirect = "这个问题我不能直接代劳。试着把它拆解成概念问题，我们一起梳理思路。"
	}
	return &chatService{
		embeddingClient:  embeddingClient,
		retriever:        retriever,
		llmClient:        llmClient,
		conversationRepo: conversationRepo,
		interactionRepo:  interactionRepo,
		llmCfg:           llmCfg,
		filterPatterns:   patterns,
		redirectMessage:  redirect,
	}
}

// SendMessage 协调完整的 RAG 流程：
// 内容过滤 → 向量化 → top-K 检索 → 拼装增强 prompt → 调用 LLM →
// 追加历史并落审计记录。
func (s *chatService) SendMessage(ctx context.Context, identity, prompt string) (*ChatResult, error) {
	// 1. 内容过滤：命中则直接返回固定的引导话术，不触达任何外部服务
	for _, re := range s.filterPatterns {
		if re.MatchString(prompt) {
			log.Infof("[ChatService] 内容过滤命中, identity: %s", identity)
			return &ChatResult{Response: s.redirectMessage}, nil
		}
	}

	history, err := s.conversationRepo.GetHistory(ctx, identity)
	if err != nil {
		log.Errorf("[ChatService] 加载对话历史失败, identity: %s, err: %v", identity, err)
		history = []model.Turn{}
	}

	timeout := time.Duration(s.llmCfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 2. 向量化查询（必须与导入侧使用同一 Embedding 配置）
	vector, err := s.embeddingClient.CreateEmbedding(callCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: 向量化查询失败: %v", ErrGeneration, err)
	}

	// 3. top-K 相似度检索，丢弃空白命中
	topK := s.llmCfg.Prompt.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	retrieved, err := s.retriever.Search(callCtx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: 相似度检索失败: %v", ErrGeneration, err)
	}
	contextChunks := make([]model.RetrievedChunk, 0, len(retrieved))
	for _, c := range retrieved {
		if strings.TrimSpace(c.Text) != "" {
			contextChunks = append(contextChunks, c)
		}
	}

	// 4. 有可用上下文时，把它放进明确分隔的背景块，与学生原话区分开
	augmented := prompt
	if len(contextChunks) > 0 {
		augmented = s.buildAugmentedPrompt(prompt, contextChunks)
	}

	// 5. 提交 Gemini 会话，历史按归一化角色翻译
	llmHistory := make([]llm.Message, 0, len(history))
	for _, t := range history {
		llmHistory = append(llmHistory, llm.Message{Role: t.Role, Content: t.Text})
	}
	response, err := s.llmClient.Chat(callCtx, llmHistory, augmented)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	// 6. 追加本轮并持久化历史。保存失败只记日志：回答已经生成
	now := time.Now()
	history = append(history,
		model.Turn{Role: model.RoleUser, Text: prompt, Timestamp: now},
		model.Turn{Role: model.RoleModel, Text: response, Timestamp: now},
	)
	// 即使请求被取消也要保存成功生成的答案，因此用后台上下文
	if err := s.conversationRepo.UpdateHistory(context.Background(), identity, history); err != nil {
		log.Errorf("[ChatService] 保存对话历史失败, identity: %s, err: %v", identity, err)
	}

	s.recordInteraction(identity, prompt, response, len(contextChunks))

	return &ChatResult{
		Response:      response,
		History:       history,
		ContextUsed:   len(contextChunks) > 0,
		ContextChunks: len(contextChunks),
	}, nil
}

// buildAugmentedPrompt 将检索到的分块包进分隔标记里，再接上学生的原始问题。
// 分隔标记让模型能区分背景资料和学生的话，也便于在系统指令中要求
// 不要逐字复述资料内容。
func (s *chatService) buildAugmentedPrompt(prompt string, chunks []model.RetrievedChunk) string {
	refStart := s.llmCfg.Prompt.RefStart
	if refStart == "" {
		refStart = defaultRefStart
	}
	refEnd := s.llmCfg.Prompt.RefEnd
	if refEnd == "" {
		refEnd = defaultRefEnd
	}

	var sb strings.Builder
	sb.WriteString(refStart)
	sb.WriteString("\n")
	for i, c := range chunks {
		sb.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, c.Metadata.FileName, c.Text))
	}
	sb.WriteString(refEnd)
	sb.WriteString("\n\n")
	sb.WriteString(prompt)
	return sb.String()
}

// recordInteraction 将问答落库供事后督导，失败只记日志。
func (s *chatService) recordInteraction(identity, question, answer string, contextChunks int) {
	if s.interactionRepo == nil {
		return
	}
	record := &model.InteractionRecord{
		Identity:      identity,
		Question:      question,
		Answer:        answer,
		ContextUsed:   contextChunks > 0,
		ContextChunks: contextChunks,
	}
	if err := s.interactionRepo.Create(record); err != nil {
		log.Errorf("[ChatService] 保存交互记录失败, identity: %s, err: %v", identity, err)
	}
}

func (s *chatService) ClearHistory(ctx context.Context, identity string) error {
	return s.conversationRepo.ClearHistory(ctx, identity)
}

func (s *chatService) History(ctx context.Context, identity string) ([]model.Turn, error) {
	return s.conversationRepo.GetHistory(ctx, identity)
}
