package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/parser"
)

// 定义建议命令的命令行参数
var (
	suggestTimeout = flag.Duration("suggest-timeout", 120*time.Second, "建议生成超时时间")
)

// 处理建议命令：产出针对简历（和可选职位描述）的改进建议列表
func handleSuggestCommand() {
	ctx, cancel := context.WithTimeout(context.Background(), *suggestTimeout)
	defer cancel()

	rt := buildRuntime(ctx)
	resumeText := loadInputText(*resumeFile, "简历", sampleResumeText)

	jobText := ""
	if *jobFile != "" {
		jobText = loadInputText(*jobFile, "职位描述", "")
	} else if *stubMode {
		jobText = sampleJobText
	}

	suggester := parser.NewSuggestionGenerator(rt.newModel(agent.TaskSuggestions), rt.logger)

	fmt.Println("1. 开始生成改进建议...")
	startTime := time.Now()

	result, err := suggester.Suggest(ctx, resumeText, jobText)
	if err != nil {
		fmt.Printf("建议生成失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("建议生成完成! 耗时: %v\n", time.Since(startTime))

	fmt.Printf("\n===== 改进建议 (%d条", len(result.Suggestions))
	if result.HasJobDescription {
		fmt.Print(", 对照职位描述")
	}
	fmt.Println(") =====")
	for i, suggestion := range result.Suggestions {
		fmt.Printf("[%d] %s\n", i+1, suggestion)
	}

	fmt.Println("\n建议生成完成。")
}
