package processor

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubChatModel_StageDispatch(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		prompt  string
		stage   string
		expects string
	}{
		{
			name:    "建议提示词",
			prompt:  "RESUME:\n...\nProvide 5 actionable suggestions.\n\nSUGGESTIONS:",
			stage:   "suggestions",
			expects: "1. Quantify",
		},
		{
			name:    "检索生成提示词",
			prompt:  "CONTEXT (Resume + Job Description):\n...\n\nTAILORED CONTENT:",
			stage:   "rag_generate",
			expects: "PROFESSIONAL SUMMARY",
		},
		{
			name:    "其余输入按聊天处理",
			prompt:  "What should I emphasize for this role?",
			stage:   "chat",
			expects: "strongest angle",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := NewStubChatModel()

			response, err := stub.Generate(ctx, []*schema.Message{schema.UserMessage(tc.prompt)})
			require.NoError(t, err)
			assert.Contains(t, response.Content, tc.expects)
			assert.Equal(t, []string{tc.stage}, stub.Stages())
		})
	}
}

func TestStubChatModel_NoStreaming(t *testing.T) {
	stub := NewStubChatModel()

	_, err := stub.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	assert.Error(t, err)
}
