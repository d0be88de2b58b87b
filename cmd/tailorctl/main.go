package main

import (
	"flag"
	"fmt"
	"os"
)

// 命令行参数定义
var (
	command    = flag.String("cmd", "analyze", "执行的命令: analyze=岗位简历分析, tailor=全流程定制, ingest=摄入向量库, generate=指令生成, suggest=改进建议, feedback=反馈学习, init=生成示例配置")
	configPath = flag.String("config", "", "配置文件路径，留空时在默认位置查找config.yaml")
	stubMode   = flag.Bool("stub", false, "使用离线桩模型运行，不调用真实模型API")
	jobFile    = flag.String("job", "", "职位描述文本文件路径，-stub 时可留空使用内置样例")
	resumeFile = flag.String("resume", "", "简历文本文件路径，-stub 时可留空使用内置样例")
	userID     = flag.String("user", "cli-user", "ingest/generate/feedback 命令使用的用户ID")
	maxLen     = flag.Int("maxlen", 1200, "显示的文本最大长度，设为-1显示全部")
	verbose    = flag.Bool("verbose", false, "输出组件调试日志")
)

func main() {
	flag.Parse()

	switch *command {
	case "analyze":
		handleAnalyzeCommand()
	case "tailor":
		handleTailorCommand()
	case "ingest":
		handleIngestCommand()
	case "generate":
		handleGenerateCommand()
	case "suggest":
		handleSuggestCommand()
	case "feedback":
		handleFeedbackCommand()
	case "init":
		handleInitCommand()
	default:
		fmt.Printf("错误: 未知命令 '%s'。支持的命令: analyze, tailor, ingest, generate, suggest, feedback, init\n", *command)
		flag.Usage()
		os.Exit(1)
	}
}
