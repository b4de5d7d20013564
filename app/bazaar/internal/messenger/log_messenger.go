package messenger

import (
	"context"

	"github.com/lk2023060901/shardbazaar/pkg/logger"
)

var _ Messenger = (*LogMessenger)(nil)

// LogMessenger 只把消息写入日志，本地开发使用
type LogMessenger struct {
	channelLookup
	logger logger.Logger
}

// NewLogMessenger 创建日志消息通道
func NewLogMessenger(channels ChannelSource, l logger.Logger) *LogMessenger {
	return &LogMessenger{
		channelLookup: channelLookup{channels: channels},
		logger:        l.Named("messenger.log"),
	}
}

func (m *LogMessenger) SendMessage(ctx context.Context, channelID, content string) error {
	m.logger.InfoContext(ctx, "outbound message", "channel_id", channelID, "content", content)
	return nil
}
