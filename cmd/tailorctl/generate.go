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

// 定义生成命令的命令行参数
var (
	generateInstruction = flag.String("generate-instruction", "Tailor my resume for this backend engineering role", "生成指令")
	generateContext     = flag.String("generate-context", "", "显式上下文，提供时跳过向量检索")
	generateSaveFile    = flag.String("generate-save", "", "保存生成内容到文件")
	generateTimeout     = flag.Duration("generate-timeout", 120*time.Second, "生成超时时间")
)

// 处理生成命令：基于已摄入的用户向量库按指令生成定制内容
func handleGenerateCommand() {
	ctx, cancel := context.WithTimeout(context.Background(), *generateTimeout)
	defer cancel()

	rt := buildRuntime(ctx)
	store := rt.buildContextStore()

	generator, err := processor.NewGenerator(rt.newModel(agent.TaskRAG), store, rt.logger)
	if err != nil {
		fmt.Printf("初始化内容生成器失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("1. 开始为用户 %s 生成内容...\n", *userID)
	startTime := time.Now()

	result := generator.Generate(ctx, *userID, *generateInstruction, *generateContext)
	if !result.Success {
		fmt.Printf("生成失败: %s\n", result.Error)
		fmt.Println("提示: 先运行 -cmd ingest 摄入简历。")
		os.Exit(1)
	}
	fmt.Printf("生成完成! 耗时: %v\n", time.Since(startTime))

	fmt.Println("\n===== 生成结果 =====")
	fmt.Printf("生成ID: %s\n", result.GenerationID)
	fmt.Printf("引用分块数: %d\n", len(result.SourceDocuments))
	fmt.Printf("\n%s\n", truncateForDisplay(result.TailoredContent))

	if *generateSaveFile != "" {
		if err := os.WriteFile(*generateSaveFile, []byte(result.TailoredContent), 0644); err != nil {
			fmt.Printf("保存生成内容失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n生成内容已保存到: %s\n", *generateSaveFile)
	}

	fmt.Println("\n生成完成。")
}
