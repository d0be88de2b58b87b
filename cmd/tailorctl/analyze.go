package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/processor"
)

// 定义分析命令的命令行参数
var (
	analyzeSaveFile = flag.String("analyze-save", "", "保存完整分析JSON到文件")
	analyzeTimeout  = flag.Duration("analyze-timeout", 120*time.Second, "分析超时时间")
)

// 处理分析命令：两路提取加策略合成，不渲染文档
func handleAnalyzeCommand() {
	ctx, cancel := context.WithTimeout(context.Background(), *analyzeTimeout)
	defer cancel()

	rt := buildRuntime(ctx)
	jobText := loadInputText(*jobFile, "职位描述", sampleJobText)
	resumeText := loadInputText(*resumeFile, "简历", sampleResumeText)

	pipeline := processor.NewTailorPipeline(
		&processor.Components{
			JobExtractor:    parser.NewJobExtractor(rt.newModel(agent.TaskJobExtraction), rt.logger),
			ResumeExtractor: parser.NewResumeExtractor(rt.newModel(agent.TaskResumeExtraction), rt.logger),
			Strategy:        parser.NewStrategySynthesizer(rt.newModel(agent.TaskStrategy), rt.logger),
		},
		&processor.Settings{
			Logger:               rt.logger,
			ConcurrentExtraction: true,
		},
	)

	fmt.Println("1. 开始分析职位与简历...")
	startTime := time.Now()

	bundle, err := pipeline.RunAnalysis(ctx, jobText, resumeText)
	if err != nil {
		fmt.Printf("分析失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("分析完成! 耗时: %v\n", time.Since(startTime))

	fmt.Println("\n===== 匹配策略 =====")
	fmt.Printf("总体匹配度: %d/100\n", bundle.Strategy.OverallMatchScore)
	fmt.Printf("匹配摘要: %s\n", bundle.Strategy.MatchSummary)
	fmt.Printf("强匹配: %d项, 部分匹配: %d项, 缺口: %d项\n",
		len(bundle.Strategy.StrongMatches), len(bundle.Strategy.PartialMatches), len(bundle.Strategy.Gaps))
	for i, gap := range bundle.Strategy.Gaps {
		fmt.Printf("  缺口[%d] %s (%s): %s\n", i+1, gap.Missing, gap.Severity, gap.Mitigation)
	}

	fmt.Println("\n===== 候选人画像 =====")
	fmt.Printf("姓名: %s\n", bundle.Resume.Name)
	fmt.Printf("技能: %v\n", bundle.Resume.Skills)
	fmt.Printf("岗位关键词: %v\n", bundle.Job.ImportantKeywords)

	if *analyzeSaveFile != "" {
		data, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			fmt.Printf("序列化分析结果失败: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*analyzeSaveFile, data, 0644); err != nil {
			fmt.Printf("保存分析结果失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n分析结果已保存到: %s\n", *analyzeSaveFile)
	}

	fmt.Println("\n分析完成。")
}
