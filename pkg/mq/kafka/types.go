package kafka

import "time"

// Message 消息结构
type Message struct {
	// Key 消息键（同一 Key 路由到同一分区，保证单频道内有序）
	Key []byte

	// Value 消息值
	Value []byte

	// Headers 消息头，例如 content-type、message_id
	Headers map[string]string
}

// ProducerStats 生产者统计
type ProducerStats struct {
	MessagesProduced  int64
	MessagesSucceeded int64
	MessagesFailed    int64
	LastMessageTime   time.Time
}
