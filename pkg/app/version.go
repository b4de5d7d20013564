package app

import (
	"fmt"
	"runtime"
)

var (
	// 以下变量由编译时通过 -ldflags "-X 'github.com/lk2023060901/shardbazaar/pkg/app.Version=v1.0.0'" 注入
	Version   = "unknown"
	GitCommit = "unknown"
	BuildDate = "unknown"
	AppName   = "shardbazaar"
)

// Info 版本信息
type Info struct {
	AppName   string `json:"app_name"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// GetInfo 获取当前应用信息
func GetInfo() Info {
	return Info{
		AppName:   AppName,
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit: %s, build: %s, go: %s)",
		i.AppName, i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}
