package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"go.opentelemetry.io/otel/attribute"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"
)

// FeedbackLearner 把用户反馈写回RAG上下文，并用细化后的指令重新生成。
// 学习与重生成两半各自独立执行，任一失败不影响另一半。
type FeedbackLearner struct {
	store     *ContextStore
	generator *Generator
	logger    *log.Logger
}

// NewFeedbackLearner 创建反馈学习器
func NewFeedbackLearner(store *ContextStore, generator *Generator, logger *log.Logger) (*FeedbackLearner, error) {
	if store == nil {
		return nil, fmt.Errorf("上下文存储不能为空")
	}
	if generator == nil {
		return nil, fmt.Errorf("生成器不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &FeedbackLearner{
		store:     store,
		generator: generator,
		logger:    logger,
	}, nil
}

// Learn 记录一次反馈并重新生成内容。
func (f *FeedbackLearner) Learn(ctx context.Context, userID, instruction, generated, feedbackText string, rating int) *types.FeedbackOutcome {
	ctx, span := tracer.Start(ctx, "FeedbackLearner.Learn")
	defer span.End()

	span.SetAttributes(
		attribute.String("rag.user_id", tracing.MaskPII(userID)),
		attribute.Int("rag.feedback_rating", rating),
	)

	learned := f.storeFeedback(ctx, userID, instruction, generated, feedbackText, rating)

	refined := instruction + "\n\nUser Feedback: " + feedbackText + "\n\nPlease improve based on this feedback."
	regenerated := f.generator.Generate(ctx, userID, refined, "")

	span.SetAttributes(
		attribute.Bool("rag.feedback_stored", learned != nil && learned.Success),
		attribute.Bool("rag.improvement_applied", regenerated != nil && regenerated.Success),
	)
	return &types.FeedbackOutcome{
		LearningStatus:     learned,
		RefinedContent:     regenerated,
		ImprovementApplied: regenerated != nil && regenerated.Success,
	}
}

// storeFeedback 将反馈块按摄入同款分块器切分后追加到驻留索引
func (f *FeedbackLearner) storeFeedback(ctx context.Context, userID, instruction, generated, feedbackText string, rating int) *types.LearnResult {
	block := fmt.Sprintf("INSTRUCTION: %s\nGENERATED: %s\nUSER FEEDBACK: %s\nRATING: %d/5",
		instruction, generated, feedbackText, rating)

	pieces := f.store.Chunker().Split(block)
	chunks := make([]types.ContextChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = types.ContextChunk{
			Text:   piece,
			Source: constants.ChunkSourceFeedback,
			UserID: userID,
			Type:   constants.ChunkTypeFeedback,
			Rating: rating,
		}
	}

	added, err := f.store.AddFeedbackChunks(ctx, userID, chunks)
	if errors.Is(err, storage.ErrIndexNotFound) {
		return &types.LearnResult{
			Success: false,
			Message: "Vector store not initialized",
		}
	}
	if err != nil {
		return &types.LearnResult{Success: false, Error: err.Error()}
	}

	f.logger.Printf("[Feedback] 用户 %s 反馈已入库，%d 个分块 (rating=%d)", userID, added, rating)
	return &types.LearnResult{
		Success:     true,
		ChunksAdded: added,
		Message:     "Feedback stored for continuous learning",
	}
}
