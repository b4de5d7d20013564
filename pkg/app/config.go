package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lk2023060901/shardbazaar/pkg/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix 环境变量前缀，例如 SHARDBAZAAR_MARKET_CAPACITY -> market.capacity
	EnvPrefix = "SHARDBAZAAR"
	// EnvConfigPath 指定配置文件路径的环境变量
	EnvConfigPath = EnvPrefix + "_CONFIG"
)

var (
	configPath string
	logPath    string
)

// LoadConfig 加载配置到 target，返回的 Manager 可用于热更新监听
// 优先级：1. 命令行显式参数 > 2. 环境变量 > 3. 配置文件 > 4. 默认值
func LoadConfig(target any, opts ...config.Option) (config.Manager, error) {
	// 1. 计算默认路径（相对当前工作目录）
	defaultConfig := "config.yaml"
	defaultLog := filepath.Join("logs", "bazaar.log")

	// 2. 注册并解析命令行参数
	if pflag.Lookup("config") == nil {
		pflag.StringVarP(&configPath, "config", "c", defaultConfig, "path to config file")
	}
	if pflag.Lookup("log.path") == nil {
		pflag.StringVar(&logPath, "log.path", defaultLog, "output path for logs")
	}
	if !pflag.Parsed() {
		pflag.Parse()
	}

	// 3. 环境变量映射
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// 4. 配置文件路径：Flag 显式指定 > SHARDBAZAAR_CONFIG > ./config.yaml
	finalConfigPath := configPath
	if !pflag.CommandLine.Changed("config") {
		if envConfig := os.Getenv(EnvConfigPath); envConfig != "" {
			finalConfigPath = envConfig
		}
	}
	if _, err := os.Stat(finalConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at %s", finalConfigPath)
	}
	configPath = finalConfigPath

	// 5. 默认值与命令行覆盖
	v.SetDefault("log.output_path", defaultLog)
	if pflag.CommandLine.Changed("log.path") {
		v.Set("log.output_path", logPath)
	}

	mgr := config.NewManager(append(opts, config.WithViper(v))...)
	if err := mgr.LoadFile(configPath); err != nil {
		return nil, err
	}
	if err := mgr.Unmarshal(target); err != nil {
		return nil, err
	}

	// 6. 自动创建日志目录
	logPath = v.GetString("log.output_path")
	if logDir := filepath.Dir(logPath); logDir != "" {
		_ = os.MkdirAll(logDir, 0o755)
	}

	return mgr, nil
}

// GetConfigPath 返回最终使用的配置文件路径
func GetConfigPath() string {
	return configPath
}
