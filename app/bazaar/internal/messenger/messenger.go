package messenger

import (
	"context"
	"errors"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/repository"
)

// Messenger 聊天平台消息通道
type Messenger interface {
	// SendMessage 向频道发送一条文本消息
	SendMessage(ctx context.Context, channelID, content string) error
	// ChannelKind 频道类型，没有记录的频道视为私聊
	ChannelKind(ctx context.Context, channelID string) (model.ChannelKind, error)
	// IsEligible 频道是否开启了指定功能
	IsEligible(ctx context.Context, channelID string, feature model.Feature) (bool, error)
}

// ChannelSource 频道记录来源
type ChannelSource interface {
	GetChannel(ctx context.Context, channelID string) (*model.Channel, error)
}

// Config 消息通道配置
type Config struct {
	// Driver kafka 或 log
	Driver string `mapstructure:"driver" validate:"oneof=kafka log"`
	// Topic 出站消息 topic
	Topic string `mapstructure:"topic"`
	// SendTimeout 单条消息发送超时
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Driver:      "log",
		Topic:       "bazaar.outbound",
		SendTimeout: 3 * time.Second,
	}
}

// channelLookup 两种实现共用的频道查询
type channelLookup struct {
	channels ChannelSource
}

func (c channelLookup) ChannelKind(ctx context.Context, channelID string) (model.ChannelKind, error) {
	ch, err := c.channels.GetChannel(ctx, channelID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.ChannelKindDirect, nil
	}
	if err != nil {
		return "", err
	}
	return ch.Kind, nil
}

func (c channelLookup) IsEligible(ctx context.Context, channelID string, feature model.Feature) (bool, error) {
	ch, err := c.channels.GetChannel(ctx, channelID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ch.Allows(feature), nil
}
