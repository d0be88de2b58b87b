package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/types"
)

// maxHistoryMessages 单次生成折叠进提示的历史消息上限，更早的轮次被截掉
const maxHistoryMessages = 20

const chatSystemPrompt = `You are a professional resume tailoring assistant. You help users improve their resumes, tailor them to specific job descriptions, and answer questions about resume writing and job applications.

When context from the user's documents is provided, ground your answers in it. Be specific and actionable. If you do not have enough information, say so instead of guessing.`

// ContextSource 为聊天提供用户语料的相似检索。
type ContextSource interface {
	Retrieve(ctx context.Context, userID, query string, k int) ([]types.ChunkHit, error)
}

// ChatAgent 面向简历定制场景的单轮对话代理。每次调用检索一次用户语料
// 作为上下文（尽力而为，无索引时照常对话），折叠会话历史后发起一次
// 模型调用，并把问答双方写回会话存储。
type ChatAgent struct {
	chatModel  model.ToolCallingChatModel
	memory     ChatMemory
	store      ContextSource
	retrievalK int
}

// NewChatAgent 创建聊天代理。memory 为 nil 时退化为进程内会话存储，
// store 为 nil 时跳过检索。
func NewChatAgent(chatModel model.ToolCallingChatModel, memory ChatMemory, store ContextSource, retrievalK int) *ChatAgent {
	if memory == nil {
		log.Println("[ChatAgent] 未提供会话存储，使用进程内实现")
		memory = NewInMemoryChatMemory()
	}
	if retrievalK <= 0 {
		retrievalK = constants.DefaultRetrievalK
	}
	return &ChatAgent{
		chatModel:  chatModel,
		memory:     memory,
		store:      store,
		retrievalK: retrievalK,
	}
}

// Chat 处理一条用户消息并返回模型回复。sessionID 为空时按 userID 开会话。
func (ca *ChatAgent) Chat(ctx context.Context, userID, sessionID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("消息内容为空")
	}
	if sessionID == "" {
		sessionID = userID
	}

	history, err := ca.memory.GetHistory(sessionID)
	if err != nil {
		return "", fmt.Errorf("读取会话 %s 的历史失败: %w", sessionID, err)
	}
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(chatSystemPrompt))
	messages = append(messages, history...)
	messages = append(messages, ca.buildUserTurn(ctx, userID, message))

	reply, err := ca.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("生成聊天回复失败: %w", err)
	}

	// 历史只存原始消息，检索上下文不随会话累积
	if err := ca.memory.AddMessages(sessionID, []*schema.Message{
		schema.UserMessage(message),
		{Role: schema.Assistant, Content: reply.Content},
	}); err != nil {
		log.Printf("[ChatAgent] 会话 %s 写入历史失败: %v", sessionID, err)
	}

	return reply.Content, nil
}

// buildUserTurn 检索用户语料并与当前消息拼接。检索失败或无结果时
// 只发送原始消息。
func (ca *ChatAgent) buildUserTurn(ctx context.Context, userID, message string) *schema.Message {
	if ca.store == nil {
		return schema.UserMessage(message)
	}

	retrieved, err := ca.store.Retrieve(ctx, userID, message, ca.retrievalK)
	if err != nil {
		log.Printf("[ChatAgent] 用户 %s 检索上下文失败，按无语料继续: %v", userID, err)
		return schema.UserMessage(message)
	}
	if len(retrieved) == 0 {
		return schema.UserMessage(message)
	}

	var sb strings.Builder
	sb.WriteString("CONTEXT FROM THE USER'S DOCUMENTS:\n")
	for _, r := range retrieved {
		text := strings.TrimSpace(r.Chunk.Text)
		if text == "" {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	sb.WriteString("\nUSER MESSAGE:\n")
	sb.WriteString(message)
	return schema.UserMessage(sb.String())
}
