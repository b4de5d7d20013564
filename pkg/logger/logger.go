// pkg/logger/logger.go
package logger

import (
	"context"
	"fmt"
	"os"

	"github.com/lk2023060901/shardbazaar/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Logger = (*BaseLogger)(nil)

// ContextFieldExtractor 从 context 提取日志字段，例如 channel_id / player_id
type ContextFieldExtractor func(ctx context.Context) []zap.Field

// Option 配置选项
type Option func(*BaseLogger)

// WithName 设置 logger 名称
func WithName(name string) Option {
	return func(l *BaseLogger) {
		l.name = name
	}
}

// WithContextExtractor 设置 context 字段提取器
func WithContextExtractor(fn ContextFieldExtractor) Option {
	return func(l *BaseLogger) {
		if fn != nil {
			l.contextExtractor = fn
		}
	}
}

// BaseLogger 基于 zap 的日志记录器实现
type BaseLogger struct {
	zl               *zap.Logger
	config           *Config
	name             string
	contextExtractor ContextFieldExtractor
}

// New 创建新的 BaseLogger
func New(cfg *Config, opts ...Option) (*BaseLogger, error) {
	// 合并默认配置，允许调用方只传部分字段
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}

	l := &BaseLogger{
		config:           merged,
		contextExtractor: func(context.Context) []zap.Field { return nil },
	}
	for _, opt := range opts {
		opt(l)
	}

	zl, err := l.build()
	if err != nil {
		return nil, err
	}
	l.zl = zl

	return l, nil
}

// build 构建 zap logger
func (l *BaseLogger) build() (*zap.Logger, error) {
	encoderConfig := l.buildEncoderConfig()

	var encoder zapcore.Encoder
	if l.config.Format == ConsoleFormat {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writers := make([]zapcore.WriteSyncer, 0, 2)
	if l.config.EnableConsole {
		writers = append(writers, zapcore.AddSync(os.Stdout))
	}
	if l.config.EnableFile {
		fileWriter, err := NewRotationWriter(&l.config.Rotation, l.config.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create rotation writer: %w", err)
		}
		writers = append(writers, zapcore.AddSync(fileWriter))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), parseLevel(l.config.Level))

	options := []zap.Option{
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	}
	if l.config.EnableStacktrace {
		options = append(options, zap.AddStacktrace(parseLevel(l.config.StacktraceLevel)))
	}
	if l.config.Development {
		options = append(options, zap.Development())
	}

	zl := zap.New(core, options...)

	if len(l.config.GlobalFields) > 0 {
		fields := make([]zap.Field, 0, len(l.config.GlobalFields))
		for k, v := range l.config.GlobalFields {
			fields = append(fields, zap.Any(k, v))
		}
		zl = zl.With(fields...)
	}

	if l.name != "" {
		zl = zl.Named(l.name)
	}

	return zl, nil
}

func (l *BaseLogger) buildEncoderConfig() zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if l.config.TimeFormat != "" {
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(l.config.TimeFormat)
	} else {
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if l.config.Development {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return cfg
}

// parseLevel 解析日志等级，未知值按 info 处理
func parseLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debug 记录 debug 级别日志
func (l *BaseLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.zl.Debug(msg, toZapFields(keysAndValues...)...)
}

// Info 记录 info 级别日志
func (l *BaseLogger) Info(msg string, keysAndValues ...interface{}) {
	l.zl.Info(msg, toZapFields(keysAndValues...)...)
}

// Warn 记录 warn 级别日志
func (l *BaseLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.zl.Warn(msg, toZapFields(keysAndValues...)...)
}

// Error 记录 error 级别日志
func (l *BaseLogger) Error(msg string, keysAndValues ...interface{}) {
	l.zl.Error(msg, toZapFields(keysAndValues...)...)
}

// DebugContext 记录 debug 级别日志，并从 context 中提取字段
func (l *BaseLogger) DebugContext(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.zl.Debug(msg, append(l.contextExtractor(ctx), toZapFields(keysAndValues...)...)...)
}

// InfoContext 记录 info 级别日志，并从 context 中提取字段
func (l *BaseLogger) InfoContext(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.zl.Info(msg, append(l.contextExtractor(ctx), toZapFields(keysAndValues...)...)...)
}

// WarnContext 记录 warn 级别日志，并从 context 中提取字段
func (l *BaseLogger) WarnContext(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.zl.Warn(msg, append(l.contextExtractor(ctx), toZapFields(keysAndValues...)...)...)
}

// ErrorContext 记录 error 级别日志，并从 context 中提取字段
func (l *BaseLogger) ErrorContext(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.zl.Error(msg, append(l.contextExtractor(ctx), toZapFields(keysAndValues...)...)...)
}

// Named 创建子 logger，名称以 "." 连接
func (l *BaseLogger) Named(name string) Logger {
	child := *l
	child.zl = l.zl.Named(name)
	if l.name != "" {
		child.name = l.name + "." + name
	} else {
		child.name = name
	}
	return &child
}

// WithFields 创建带固定字段的子 logger
func (l *BaseLogger) WithFields(keysAndValues ...interface{}) Logger {
	fields := toZapFields(keysAndValues...)
	if len(fields) == 0 {
		return l
	}
	child := *l
	child.zl = l.zl.With(fields...)
	return &child
}

// Sync 同步日志
func (l *BaseLogger) Sync() error {
	return l.zl.Sync()
}

// toZapFields 将 key-value 对转换为 zap.Field，奇数个参数时丢弃最后一个
func toZapFields(keysAndValues ...interface{}) []zap.Field {
	if len(keysAndValues) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
