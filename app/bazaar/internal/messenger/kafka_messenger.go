package messenger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/mq/kafka"
	"github.com/lk2023060901/shardbazaar/pkg/serializer"
)

// Publisher 消息发布者，*kafka.Client 满足该接口
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *kafka.Message) error
}

// OutboundMessage 发往聊天网关的消息
type OutboundMessage struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	SentAt    int64  `json:"sent_at"` // unix ms
}

var _ Messenger = (*KafkaMessenger)(nil)

// KafkaMessenger 通过 kafka 将消息投递给聊天网关
type KafkaMessenger struct {
	channelLookup
	publisher  Publisher
	serializer serializer.Serializer
	config     *Config
	logger     logger.Logger
}

// NewKafkaMessenger 创建 kafka 消息通道
func NewKafkaMessenger(publisher Publisher, channels ChannelSource, cfg *Config, l logger.Logger) *KafkaMessenger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &KafkaMessenger{
		channelLookup: channelLookup{channels: channels},
		publisher:     publisher,
		serializer:    serializer.NewJSON(),
		config:        cfg,
		logger:        l.Named("messenger.kafka"),
	}
}

// SendMessage 以频道 ID 作为消息键发布，保证单频道内有序
func (m *KafkaMessenger) SendMessage(ctx context.Context, channelID, content string) error {
	msg := &OutboundMessage{
		MessageID: uuid.NewString(),
		ChannelID: channelID,
		Content:   content,
		SentAt:    time.Now().UnixMilli(),
	}
	value, err := m.serializer.Serialize(msg)
	if err != nil {
		return fmt.Errorf("encode outbound message: %w", err)
	}

	if m.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.SendTimeout)
		defer cancel()
	}

	err = m.publisher.Publish(ctx, m.config.Topic, &kafka.Message{
		Key:   []byte(channelID),
		Value: value,
		Headers: map[string]string{
			"content-type": m.serializer.ContentType(),
			"message_id":   msg.MessageID,
		},
	})
	if err != nil {
		return fmt.Errorf("publish message to %s: %w", channelID, err)
	}

	m.logger.Debug("message published", "channel_id", channelID, "message_id", msg.MessageID)
	return nil
}
