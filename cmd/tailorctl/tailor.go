package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"resume-agent-go/internal/processor"
)

// 定义定制命令的命令行参数
var (
	tailorOutDir   = flag.String("tailor-out", "", "产物输出目录，留空时使用配置值")
	tailorName     = flag.String("tailor-name", "", "输出文件名，留空时为 tailored<扩展名>")
	tailorTemplate = flag.String("tailor-template", "", "模板文件路径，留空时使用配置值或内置模板")
	tailorTimeout  = flag.Duration("tailor-timeout", 300*time.Second, "全流程超时时间")
)

// 处理定制命令：分析、渲染并在本地落盘文档与分析快照
func handleTailorCommand() {
	ctx, cancel := context.WithTimeout(context.Background(), *tailorTimeout)
	defer cancel()

	rt := buildRuntime(ctx)
	jobText := loadInputText(*jobFile, "职位描述", sampleJobText)
	resumeText := loadInputText(*resumeFile, "简历", sampleResumeText)

	outDir := *tailorOutDir
	if outDir == "" {
		outDir = rt.cfg.Artifacts.OutputDir
	}

	templatePath := *tailorTemplate
	if templatePath == "" {
		templatePath = rt.cfg.Artifacts.TemplatePath
	}
	template, err := processor.ResolveTemplate(templatePath)
	if err != nil {
		fmt.Printf("加载渲染模板失败: %v\n", err)
		os.Exit(1)
	}

	outputName := *tailorName
	if outputName == "" {
		extension := rt.cfg.Artifacts.DocumentExtension
		if extension == "" {
			extension = ".tex"
		}
		outputName = "tailored" + extension
	}

	pipeline := rt.buildPipeline(outDir)

	fmt.Println("1. 开始全流程定制...")
	startTime := time.Now()

	doc, err := pipeline.RunFull(ctx, jobText, resumeText, template, outputName)
	if err != nil {
		fmt.Printf("定制失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("定制完成! 耗时: %v\n", time.Since(startTime))

	fmt.Println("\n===== 产物 =====")
	fmt.Printf("渲染文档: %s\n", doc.DocumentPath)
	fmt.Printf("分析快照: %s\n", doc.SnapshotPath)
	if doc.Analysis != nil && doc.Analysis.Strategy != nil {
		fmt.Printf("总体匹配度: %d/100\n", doc.Analysis.Strategy.OverallMatchScore)
	}

	fmt.Printf("\n===== 文档内容 (总计 %d 字符) =====\n", len(doc.Content))
	fmt.Println(truncateForDisplay(doc.Content))

	fmt.Println("\n定制完成。")
}
