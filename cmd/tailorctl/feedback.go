package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/processor"
)

// 定义反馈命令的命令行参数
var (
	feedbackInstruction = flag.String("feedback-instruction", "Tailor my resume for this backend engineering role", "原始生成指令")
	feedbackGenerated   = flag.String("feedback-generated", "", "被评价的生成内容文件路径")
	feedbackText        = flag.String("feedback-text", "Add more quantified results", "反馈意见")
	feedbackRating      = flag.Int("feedback-rating", 3, "评分 1-5")
	feedbackTimeout     = flag.Duration("feedback-timeout", 120*time.Second, "反馈处理超时时间")
)

// 处理反馈命令：把反馈写入用户向量库并按反馈重新生成
func handleFeedbackCommand() {
	if *feedbackRating < 1 || *feedbackRating > 5 {
		fmt.Printf("错误: 评分必须在1到5之间，当前为 %d。\n", *feedbackRating)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *feedbackTimeout)
	defer cancel()

	rt := buildRuntime(ctx)

	// 被评价的内容可以从文件读入；留空时退化为只凭指令与反馈学习
	generated := ""
	if *feedbackGenerated != "" {
		generated = loadInputText(*feedbackGenerated, "生成内容", "")
	}

	store := rt.buildContextStore()
	generator, err := processor.NewGenerator(rt.newModel(agent.TaskRAG), store, rt.logger)
	if err != nil {
		fmt.Printf("初始化内容生成器失败: %v\n", err)
		os.Exit(1)
	}
	learner, err := processor.NewFeedbackLearner(store, generator, rt.logger)
	if err != nil {
		fmt.Printf("初始化反馈学习器失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("1. 开始处理用户 %s 的反馈 (评分 %d/5)...\n", *userID, *feedbackRating)
	startTime := time.Now()

	outcome := learner.Learn(ctx, *userID, *feedbackInstruction, generated, *feedbackText, *feedbackRating)
	fmt.Printf("反馈处理完成! 耗时: %v\n", time.Since(startTime))

	fmt.Println("\n===== 学习状态 =====")
	if outcome.LearningStatus != nil {
		fmt.Printf("入库成功: %v, 新增分块: %d\n", outcome.LearningStatus.Success, outcome.LearningStatus.ChunksAdded)
		if outcome.LearningStatus.Message != "" {
			fmt.Printf("说明: %s\n", outcome.LearningStatus.Message)
		}
	}
	fmt.Printf("改进已应用: %v\n", outcome.ImprovementApplied)

	if outcome.RefinedContent != nil && outcome.RefinedContent.Success {
		fmt.Println("\n===== 改进后的内容 =====")
		fmt.Println(truncateForDisplay(outcome.RefinedContent.TailoredContent))
	}

	fmt.Println("\n反馈处理完成。")
}
