package service

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
)

// Rand 可替换的随机源，测试中注入确定性实现
type Rand interface {
	// Intn 返回 [0, n) 内的均匀随机数
	Intn(n int) int
}

// lockedRand 并发安全的 math/rand
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// NewRand 使用 crypto/rand 播种的随机源
func NewRand() Rand {
	var seed [8]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return NewSeededRand(int64(binary.LittleEndian.Uint64(seed[:])))
}

// NewSeededRand 固定种子的随机源
func NewSeededRand(seed int64) Rand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

// TierWeight 稀有度权重
type TierWeight struct {
	Name   string `mapstructure:"name" validate:"required"`
	Weight int    `mapstructure:"weight" validate:"gte=1"`
	// Rank 稀有度等级，越大越稀有；商店上架门槛按此比较
	Rank int `mapstructure:"rank"`
}

// TierTable 稀有度表
type TierTable []TierWeight

// Rank 稀有度等级，未配置的稀有度为 0
func (t TierTable) Rank(name string) int {
	for _, tw := range t {
		if tw.Name == name {
			return tw.Rank
		}
	}
	return 0
}

var errNoTiers = errors.New("no tier with positive weight")

// PickTier 按权重抽取稀有度：在 [0, total) 取一次随机数，按累积权重扫描
func PickTier(r Rand, tiers []TierWeight) (string, error) {
	total := 0
	for _, t := range tiers {
		if t.Weight > 0 {
			total += t.Weight
		}
	}
	if total == 0 {
		return "", errNoTiers
	}

	roll := r.Intn(total)
	cumulative := 0
	for _, t := range tiers {
		if t.Weight <= 0 {
			continue
		}
		cumulative += t.Weight
		if roll < cumulative {
			return t.Name, nil
		}
	}
	// 不可达
	return tiers[len(tiers)-1].Name, nil
}

// PickUniform 均匀抽取一个条目，列表为空返回 nil
func PickUniform(r Rand, entries []*model.Collectible) *model.Collectible {
	if len(entries) == 0 {
		return nil
	}
	return entries[r.Intn(len(entries))]
}

// Selector 刷新抽取器：先按权重抽稀有度，再在该稀有度内均匀抽取
type Selector struct {
	catalog *model.Catalog
	tiers   TierTable
	rand    Rand
}

// NewSelector 创建抽取器
func NewSelector(catalog *model.Catalog, tiers TierTable, r Rand) *Selector {
	return &Selector{catalog: catalog, tiers: tiers, rand: r}
}

// Draw 抽取一个定义；抽中的稀有度没有条目时退回全表均匀抽取
func (s *Selector) Draw() (*model.Collectible, error) {
	tier, err := PickTier(s.rand, s.tiers)
	if err != nil {
		return nil, err
	}
	if c := PickUniform(s.rand, s.catalog.ByTier(tier)); c != nil {
		return c, nil
	}
	if c := PickUniform(s.rand, s.catalog.All()); c != nil {
		return c, nil
	}
	return nil, errors.Wrap(ErrNotFound, "catalog is empty")
}

// Find 按 ID 或名称（大小写不敏感）查找定义
func (s *Selector) Find(target string) (*model.Collectible, error) {
	c, ok := s.catalog.Find(target)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "collectible %q", target)
	}
	return c, nil
}
