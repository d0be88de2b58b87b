package agent_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/types"
)

// scriptedChatModel 返回固定回复并记录收到的消息，供断言提示词组装
type scriptedChatModel struct {
	reply        string
	err          error
	lastMessages []*schema.Message
}

func (s *scriptedChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	s.lastMessages = messages
	if s.err != nil {
		return nil, s.err
	}
	return &schema.Message{Role: schema.Assistant, Content: s.reply}, nil
}

func (s *scriptedChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *scriptedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return s, nil
}

var _ model.ToolCallingChatModel = (*scriptedChatModel)(nil)

// scriptedContextSource 返回固定检索结果或固定错误
type scriptedContextSource struct {
	chunks []types.ChunkHit
	err    error
}

func (s *scriptedContextSource) Retrieve(ctx context.Context, userID, query string, k int) ([]types.ChunkHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

// TestChatAgent_Chat_WithContext 检索结果应折叠进用户侧提示，历史只存原始消息
func TestChatAgent_Chat_WithContext(t *testing.T) {
	chatModel := &scriptedChatModel{reply: "建议在概要中突出五年Go经验"}
	memory := agent.NewInMemoryChatMemory()
	store := &scriptedContextSource{chunks: []types.ChunkHit{
		{Chunk: types.ContextChunk{Text: "五年Go后端开发经验，主导过支付系统重构", Source: "resume", UserID: "u1", Type: "resume"}, Score: 0.92},
	}}

	chatAgent := agent.NewChatAgent(chatModel, memory, store, 5)

	reply, err := chatAgent.Chat(context.Background(), "u1", "sess-1", "我的简历适合这个Go岗位吗？")
	require.NoError(t, err)
	assert.Equal(t, "建议在概要中突出五年Go经验", reply)

	// 模型收到 system + 折叠后的用户消息
	require.Len(t, chatModel.lastMessages, 2)
	assert.Equal(t, schema.System, chatModel.lastMessages[0].Role)
	userTurn := chatModel.lastMessages[1]
	assert.Equal(t, schema.User, userTurn.Role)
	assert.Contains(t, userTurn.Content, "CONTEXT FROM THE USER'S DOCUMENTS")
	assert.Contains(t, userTurn.Content, "五年Go后端开发经验")
	assert.Contains(t, userTurn.Content, "我的简历适合这个Go岗位吗？")

	// 历史存的是原始消息，不含检索上下文
	history, err := memory.GetHistory("sess-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "我的简历适合这个Go岗位吗？", history[0].Content)
	assert.NotContains(t, history[0].Content, "CONTEXT")
	assert.Equal(t, "建议在概要中突出五年Go经验", history[1].Content)
}

// TestChatAgent_Chat_StoreError 检索失败时按无语料继续对话
func TestChatAgent_Chat_StoreError(t *testing.T) {
	chatModel := &scriptedChatModel{reply: "可以先贴出简历内容"}
	store := &scriptedContextSource{err: fmt.Errorf("index not found")}

	chatAgent := agent.NewChatAgent(chatModel, agent.NewInMemoryChatMemory(), store, 5)

	reply, err := chatAgent.Chat(context.Background(), "u1", "sess-1", "帮我改简历")
	require.NoError(t, err)
	assert.Equal(t, "可以先贴出简历内容", reply)

	userTurn := chatModel.lastMessages[len(chatModel.lastMessages)-1]
	assert.Equal(t, "帮我改简历", userTurn.Content)
}

// TestChatAgent_Chat_HistoryFolded 既有历史按原顺序夹在 system 与新消息之间
func TestChatAgent_Chat_HistoryFolded(t *testing.T) {
	chatModel := &scriptedChatModel{reply: "第二轮回复"}
	memory := agent.NewInMemoryChatMemory()
	require.NoError(t, memory.AddMessages("sess-1", []*schema.Message{
		schema.UserMessage("第一轮提问"),
		{Role: schema.Assistant, Content: "第一轮回复"},
	}))

	chatAgent := agent.NewChatAgent(chatModel, memory, nil, 5)

	_, err := chatAgent.Chat(context.Background(), "u1", "sess-1", "第二轮提问")
	require.NoError(t, err)

	require.Len(t, chatModel.lastMessages, 4)
	assert.Equal(t, schema.System, chatModel.lastMessages[0].Role)
	assert.Equal(t, "第一轮提问", chatModel.lastMessages[1].Content)
	assert.Equal(t, "第一轮回复", chatModel.lastMessages[2].Content)
	assert.Equal(t, "第二轮提问", chatModel.lastMessages[3].Content)

	history, err := memory.GetHistory("sess-1")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

// TestChatAgent_Chat_EmptyMessage 空白消息直接拒绝
func TestChatAgent_Chat_EmptyMessage(t *testing.T) {
	chatAgent := agent.NewChatAgent(&scriptedChatModel{reply: "x"}, agent.NewInMemoryChatMemory(), nil, 5)

	_, err := chatAgent.Chat(context.Background(), "u1", "sess-1", "   ")
	assert.Error(t, err)
}

// TestChatAgent_Chat_SessionDefaultsToUser 未指定会话时按用户ID开会话
func TestChatAgent_Chat_SessionDefaultsToUser(t *testing.T) {
	memory := agent.NewInMemoryChatMemory()
	chatAgent := agent.NewChatAgent(&scriptedChatModel{reply: "ok"}, memory, nil, 5)

	_, err := chatAgent.Chat(context.Background(), "u1", "", "hello")
	require.NoError(t, err)

	history, err := memory.GetHistory("u1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

// TestChatAgent_Chat_ModelError 模型失败时历史不应留下半条记录
func TestChatAgent_Chat_ModelError(t *testing.T) {
	memory := agent.NewInMemoryChatMemory()
	chatAgent := agent.NewChatAgent(&scriptedChatModel{err: fmt.Errorf("quota exceeded")}, memory, nil, 5)

	_, err := chatAgent.Chat(context.Background(), "u1", "sess-1", "hello")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "quota exceeded"))

	history, err := memory.GetHistory("sess-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}
