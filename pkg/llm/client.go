// Package llm provides a client for interacting with the Gemini chat models.
package llm

import (
	"context"
	"fmt"
	"strings"

	"campus-tutor-go/internal/config"
	"campus-tutor-go/pkg/log"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Message 表示一条角色消息，Role 取值为 "user" 或 "model"。
type Message struct {
	Role    string
	Content string
}

// Client defines the interface for an LLM chat client.
type Client interface {
	// Chat 以 history 为上下文开启一次会话，提交 prompt 并返回完整回答。
	Chat(ctx context.Context, history []Message, prompt string) (string, error)
	Close()
}

type geminiClient struct {
	cfg    config.LLMConfig
	client *genai.Client
}

// NewClient 创建一个 Gemini 聊天客户端。
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &geminiClient{cfg: cfg, client: client}, nil
}

func (c *geminiClient) Close() {
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			log.Errorf("[LLMClient] 关闭 genai 客户端失败: %v", err)
		}
	}
}

// Chat 构造一次 Gemini 会话：注入系统指令与生成参数，将历史翻译为
// genai 的角色内容，最后提交本轮 prompt。
func (c *geminiClient) Chat(ctx context.Context, history []Message, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.cfg.Model)

	if c.cfg.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(c.cfg.SystemInstruction)},
		}
	}
	c.applyGenerationConfig(model)

	session := model.StartChat()
	for _, m := range history {
		session.History = append(session.History, &genai.Content{
			Role:  m.Role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		log.Warnf("[LLMClient] Gemini 返回了空响应或无有效候选")
		return "", fmt.Errorf("gemini returned an empty response")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			log.Warnf("[LLMClient] Gemini 响应包含非文本部分: %T", part)
		}
	}

	if responseText.Len() == 0 {
		return "", fmt.Errorf("gemini response contained no text parts")
	}

	return responseText.String(), nil
}

func (c *geminiClient) applyGenerationConfig(model *genai.GenerativeModel) {
	if c.cfg.Generation.Temperature != 0 {
		t := float32(c.cfg.Generation.Temperature)
		model.GenerationConfig.Temperature = &t
	}
	if c.cfg.Generation.TopP != 0 {
		p := float32(c.cfg.Generation.TopP)
		model.GenerationConfig.TopP = &p
	}
	if c.cfg.Generation.MaxTokens != 0 {
		m := int32(c.cfg.Generation.MaxTokens)
		model.GenerationConfig.MaxOutputTokens = &m
	}
}
