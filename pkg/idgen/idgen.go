package idgen

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sony/sonyflake"
)

// Generator ID生成器接口
type Generator interface {
	// NextID 生成下一个唯一ID
	NextID() (int64, error)
}

type sonyflakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewSonyflake 创建基于 Sonyflake 的ID生成器
// machineID: 机器ID (0-65535)，多副本部署时必须互不相同
func NewSonyflake(machineID uint16) (Generator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		MachineID: func() (uint16, error) {
			return machineID, nil
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sonyflake generator")
	}
	return &sonyflakeGenerator{sf: sf}, nil
}

func (g *sonyflakeGenerator) NextID() (int64, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return 0, errors.Wrap(err, "failed to generate id")
	}
	return int64(id), nil
}

// Sequence 进程内自增ID生成器，用于单机内存模式与测试
type Sequence struct {
	n atomic.Int64
}

// NewSequence 创建从 start+1 开始的自增生成器
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.n.Store(start)
	return s
}

func (s *Sequence) NextID() (int64, error) {
	return s.n.Add(1), nil
}
