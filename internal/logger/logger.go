package logger

import (
	"io"
	stdlog "log"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Logger 全局日志实例，其他包可直接使用
	Logger = log.Logger
)

// Config 日志配置
type Config struct {
	Level        string `json:"level" yaml:"level"`                 // debug, info, warn, error
	Format       string `json:"format" yaml:"format"`               // json 或 pretty
	TimeFormat   string `json:"time_format" yaml:"time_format"`     // 时间戳格式
	ReportCaller bool   `json:"report_caller" yaml:"report_caller"` // 是否记录调用位置
}

// Init 按配置初始化全局日志系统
func Init(config Config) {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if config.Format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: config.TimeFormat,
			NoColor:    false,
		}
	}

	if config.TimeFormat == "" {
		zerolog.TimeFieldFormat = time.RFC3339
	} else {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	contextLogger := zerolog.New(output).
		Level(level).
		With().
		Timestamp()

	if config.ReportCaller {
		contextLogger = contextLogger.Caller()
	}

	// 同时替换包内全局实例和zerolog自身的全局logger
	Logger = contextLogger.Logger()
	log.Logger = Logger
}

// Debug 开始一条debug级别日志
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info 开始一条info级别日志
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn 开始一条warn级别日志
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error 开始一条error级别日志
func Error() *zerolog.Event {
	return Logger.Error()
}

// Fatal 开始一条fatal级别日志，记录后进程退出
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// NewComponentLogger 为单个组件创建带前缀的标准库logger。
// parser/processor层的组件接收*log.Logger，debug关闭时写入io.Discard。
func NewComponentLogger(prefix string, debug bool) *stdlog.Logger {
	if !debug {
		return stdlog.New(io.Discard, "", 0)
	}
	return stdlog.New(Logger, "["+prefix+"] ", stdlog.LstdFlags|stdlog.Lshortfile)
}
