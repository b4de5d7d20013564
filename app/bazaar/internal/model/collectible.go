package model

import (
	"strconv"
	"strings"
)

// Collectible 收藏品定义（只读，外部导入）
// 对应表：collectibles
type Collectible struct {
	ID       int32  // 定义ID
	Name     string // 显示名称，认领时按大小写不敏感精确匹配
	Tier     string // 稀有度分类
	Artwork  string // 图片引用
	Series   string // 所属系列
	Author   string // 作者署名
	Evolving bool   // 是否可成长（每次捕获独立的等级/经验快照）
}

// Catalog 收藏品目录（启动时加载，之后只读）
type Catalog struct {
	all    []*Collectible
	byID   map[int32]*Collectible
	byName map[string]*Collectible
	byTier map[string][]*Collectible
}

// NewCatalog 创建目录，保持传入顺序
func NewCatalog(entries []*Collectible) *Catalog {
	c := &Catalog{
		all:    entries,
		byID:   make(map[int32]*Collectible, len(entries)),
		byName: make(map[string]*Collectible, len(entries)),
		byTier: make(map[string][]*Collectible),
	}
	for _, e := range entries {
		c.byID[e.ID] = e
		c.byName[strings.ToLower(e.Name)] = e
		c.byTier[e.Tier] = append(c.byTier[e.Tier], e)
	}
	return c
}

// All 返回全部条目
func (c *Catalog) All() []*Collectible { return c.all }

// ByTier 返回指定分类下的条目
func (c *Catalog) ByTier(tier string) []*Collectible { return c.byTier[tier] }

// Get 按ID查找
func (c *Catalog) Get(id int32) (*Collectible, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// Find 按数字ID或名称（大小写不敏感）查找
func (c *Catalog) Find(target string) (*Collectible, bool) {
	target = strings.TrimSpace(target)
	if id, err := strconv.ParseInt(target, 10, 32); err == nil {
		if e, ok := c.byID[int32(id)]; ok {
			return e, true
		}
	}
	e, ok := c.byName[strings.ToLower(target)]
	return e, ok
}

// Len 条目数量
func (c *Catalog) Len() int { return len(c.all) }
