package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
)

// memoryState 内存仓储的一份完整数据
type memoryState struct {
	accounts     map[string]model.Account
	instances    map[int64]model.Instance
	collectibles []model.Collectible
	channels     map[string]model.Channel
	market       map[int64]model.MarketListing
	localSales   map[int64]model.LocalSale
}

func newMemoryState() *memoryState {
	return &memoryState{
		accounts:   make(map[string]model.Account),
		instances:  make(map[int64]model.Instance),
		channels:   make(map[string]model.Channel),
		market:     make(map[int64]model.MarketListing),
		localSales: make(map[int64]model.LocalSale),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		accounts:     cloneMap(s.accounts),
		instances:    cloneMap(s.instances),
		collectibles: s.collectibles,
		channels:     cloneMap(s.channels),
		market:       cloneMap(s.market),
		localSales:   cloneMap(s.localSales),
	}
}

type memoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

var _ EconomyRepository = (*MemoryRepository)(nil)

// MemoryRepository 单进程内存仓储，用于本地开发与测试
//
// 事务串行执行：WithTx 持有全局锁，在副本上执行 fn，成功后整体替换，失败则丢弃副本。
type MemoryRepository struct {
	store *memoryStore
	tx    *memoryState
}

// NewMemoryRepository 创建内存仓储，collectibles 为只读定义表
func NewMemoryRepository(collectibles []*model.Collectible) *MemoryRepository {
	st := newMemoryState()
	for _, c := range collectibles {
		st.collectibles = append(st.collectibles, *c)
	}
	return &MemoryRepository{store: &memoryStore{state: st}}
}

// run 事务内直接使用副本，事务外加锁后作用于已提交数据
func (r *MemoryRepository) run(fn func(s *memoryState) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.state)
}

func (r *MemoryRepository) WithTx(ctx context.Context, fn func(repo EconomyRepository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	work := r.store.state.clone()
	if err := fn(&MemoryRepository{store: r.store, tx: work}); err != nil {
		return err
	}
	r.store.state = work
	return nil
}

// ============ 账户 ============

func (r *MemoryRepository) GetAccount(_ context.Context, playerID string) (acc *model.Account, err error) {
	err = r.run(func(s *memoryState) error {
		a, ok := s.accounts[playerID]
		if !ok {
			return ErrNotFound
		}
		acc = &a
		return nil
	})
	return acc, err
}

func (r *MemoryRepository) GetAccountForUpdate(ctx context.Context, playerID string) (*model.Account, error) {
	return r.GetAccount(ctx, playerID)
}

func (r *MemoryRepository) CreateAccount(_ context.Context, acc *model.Account) error {
	return r.run(func(s *memoryState) error {
		if _, ok := s.accounts[acc.PlayerID]; ok {
			return ErrDuplicate
		}
		s.accounts[acc.PlayerID] = *acc
		return nil
	})
}

func (r *MemoryRepository) AdjustShards(_ context.Context, playerID string, delta int64) error {
	return r.run(func(s *memoryState) error {
		a, ok := s.accounts[playerID]
		if !ok {
			return ErrNotFound
		}
		a.Shards += delta
		s.accounts[playerID] = a
		return nil
	})
}

// ============ 收藏 ============

func ownedBy(s *memoryState, ownerID string) []model.Instance {
	var list []model.Instance
	for _, inst := range s.instances {
		if inst.OwnerID == ownerID {
			list = append(list, inst)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].ObtainedAt.Equal(list[j].ObtainedAt) {
			return list[i].ObtainedAt.Before(list[j].ObtainedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func (r *MemoryRepository) ListCollection(_ context.Context, ownerID string) (list []*model.Instance, err error) {
	err = r.run(func(s *memoryState) error {
		for _, inst := range ownedBy(s, ownerID) {
			inst := inst
			list = append(list, &inst)
		}
		return nil
	})
	return list, err
}

func (r *MemoryRepository) TakeInstance(_ context.Context, ownerID string, index int) (inst *model.Instance, err error) {
	err = r.run(func(s *memoryState) error {
		owned := ownedBy(s, ownerID)
		if index < 1 || index > len(owned) {
			return ErrNotFound
		}
		taken := owned[index-1]
		delete(s.instances, taken.ID)
		inst = &taken
		return nil
	})
	return inst, err
}

func (r *MemoryRepository) InsertInstance(_ context.Context, inst *model.Instance) error {
	return r.run(func(s *memoryState) error {
		if _, ok := s.instances[inst.ID]; ok {
			return ErrDuplicate
		}
		s.instances[inst.ID] = *inst
		return nil
	})
}

// ============ 定义与频道 ============

func (r *MemoryRepository) ListCollectibles(_ context.Context) (list []*model.Collectible, err error) {
	err = r.run(func(s *memoryState) error {
		for _, c := range s.collectibles {
			c := c
			list = append(list, &c)
		}
		return nil
	})
	return list, err
}

func (r *MemoryRepository) GetChannel(_ context.Context, channelID string) (ch *model.Channel, err error) {
	err = r.run(func(s *memoryState) error {
		c, ok := s.channels[channelID]
		if !ok {
			return ErrNotFound
		}
		ch = &c
		return nil
	})
	return ch, err
}

func (r *MemoryRepository) ListSpawnChannels(_ context.Context) (list []*model.Channel, err error) {
	err = r.run(func(s *memoryState) error {
		for _, c := range s.channels {
			if c.Kind == model.ChannelKindGroup && c.SpawnEnabled {
				c := c
				list = append(list, &c)
			}
		}
		return nil
	})
	sort.Slice(list, func(i, j int) bool { return list[i].ChannelID < list[j].ChannelID })
	return list, err
}

func (r *MemoryRepository) SaveChannel(_ context.Context, ch *model.Channel) error {
	return r.run(func(s *memoryState) error {
		c := *ch
		if old, ok := s.channels[ch.ChannelID]; ok {
			c.LastSpawnSummary = old.LastSpawnSummary
		}
		s.channels[ch.ChannelID] = c
		return nil
	})
}

func (r *MemoryRepository) SetLastSpawnSummary(_ context.Context, channelID, summary string, now time.Time) error {
	return r.run(func(s *memoryState) error {
		c, ok := s.channels[channelID]
		if !ok {
			return nil
		}
		c.LastSpawnSummary = summary
		c.UpdatedAt = now
		s.channels[channelID] = c
		return nil
	})
}

// ============ 全局商店 ============

// LockMarket 内存事务本身串行，无需额外加锁
func (r *MemoryRepository) LockMarket(context.Context) error { return nil }

func (r *MemoryRepository) CountMarket(_ context.Context) (n int, err error) {
	err = r.run(func(s *memoryState) error {
		n = len(s.market)
		return nil
	})
	return n, err
}

func (r *MemoryRepository) MarketCodeExists(_ context.Context, code string) (exists bool, err error) {
	err = r.run(func(s *memoryState) error {
		for _, l := range s.market {
			if l.Code == code {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r *MemoryRepository) InsertMarketListing(_ context.Context, l *model.MarketListing) error {
	return r.run(func(s *memoryState) error {
		for _, other := range s.market {
			if other.Code == l.Code || other.ID == l.ID {
				return ErrDuplicate
			}
		}
		s.market[l.ID] = *l
		return nil
	})
}

func (r *MemoryRepository) TakeMarketListing(_ context.Context, code string, now time.Time) (l *model.MarketListing, err error) {
	err = r.run(func(s *memoryState) error {
		for id, m := range s.market {
			if m.Code == code && !m.Expired(now) {
				delete(s.market, id)
				l = &m
				return nil
			}
		}
		return ErrNotFound
	})
	return l, err
}

func (r *MemoryRepository) TakeExpiredMarketListing(_ context.Context, id int64, now time.Time) (l *model.MarketListing, err error) {
	err = r.run(func(s *memoryState) error {
		m, ok := s.market[id]
		if !ok || !m.Expired(now) {
			return ErrNotFound
		}
		delete(s.market, id)
		l = &m
		return nil
	})
	return l, err
}

func sortedListings(s *memoryState, keep func(*model.MarketListing) bool) []*model.MarketListing {
	var list []*model.MarketListing
	for _, m := range s.market {
		m := m
		if keep(&m) {
			list = append(list, &m)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func (r *MemoryRepository) ListMarket(_ context.Context) (list []*model.MarketListing, err error) {
	err = r.run(func(s *memoryState) error {
		list = sortedListings(s, func(*model.MarketListing) bool { return true })
		return nil
	})
	return list, err
}

func (r *MemoryRepository) ListExpiredMarket(_ context.Context, now time.Time) (list []*model.MarketListing, err error) {
	err = r.run(func(s *memoryState) error {
		list = sortedListings(s, func(m *model.MarketListing) bool { return m.Expired(now) })
		return nil
	})
	return list, err
}

// ============ 频道出售 ============

func findSale(s *memoryState, match func(*model.LocalSale) bool) (model.LocalSale, bool) {
	for _, sale := range s.localSales {
		if sale.Status == model.SaleStatusActive && match(&sale) {
			return sale, true
		}
	}
	return model.LocalSale{}, false
}

func (r *MemoryRepository) HasActiveLocalSale(_ context.Context, sellerID, channelID string) (exists bool, err error) {
	err = r.run(func(s *memoryState) error {
		_, exists = findSale(s, func(sale *model.LocalSale) bool {
			return sale.SellerID == sellerID && sale.ChannelID == channelID
		})
		return nil
	})
	return exists, err
}

func (r *MemoryRepository) LocalCodeExists(_ context.Context, channelID, code string) (exists bool, err error) {
	err = r.run(func(s *memoryState) error {
		_, exists = findSale(s, func(sale *model.LocalSale) bool {
			return sale.ChannelID == channelID && sale.Code == code
		})
		return nil
	})
	return exists, err
}

func (r *MemoryRepository) InsertLocalSale(_ context.Context, sale *model.LocalSale) error {
	return r.run(func(s *memoryState) error {
		if _, ok := findSale(s, func(other *model.LocalSale) bool {
			return other.SellerID == sale.SellerID && other.ChannelID == sale.ChannelID
		}); ok {
			return ErrActiveSaleExists
		}
		if _, ok := findSale(s, func(other *model.LocalSale) bool {
			return other.ChannelID == sale.ChannelID && other.Code == sale.Code
		}); ok {
			return ErrDuplicate
		}
		s.localSales[sale.ID] = *sale
		return nil
	})
}

func (r *MemoryRepository) MarkLocalSaleSold(_ context.Context, channelID, code, buyerID string, now time.Time) (sold *model.LocalSale, err error) {
	err = r.run(func(s *memoryState) error {
		sale, ok := findSale(s, func(sale *model.LocalSale) bool {
			return sale.ChannelID == channelID && sale.Code == code && !sale.Expired(now)
		})
		if !ok {
			return ErrNotFound
		}
		soldAt := now
		sale.Status = model.SaleStatusSold
		sale.BuyerID = buyerID
		sale.SoldAt = &soldAt
		s.localSales[sale.ID] = sale
		sold = &sale
		return nil
	})
	return sold, err
}

func (r *MemoryRepository) SetLocalSaleBuyerName(_ context.Context, id int64, buyerName string) error {
	return r.run(func(s *memoryState) error {
		sale, ok := s.localSales[id]
		if !ok {
			return ErrNotFound
		}
		sale.BuyerName = buyerName
		s.localSales[id] = sale
		return nil
	})
}

func (r *MemoryRepository) CloseLocalSale(_ context.Context, id int64, status model.SaleStatus, now time.Time) (closed *model.LocalSale, err error) {
	err = r.run(func(s *memoryState) error {
		sale, ok := s.localSales[id]
		if !ok || sale.Status != model.SaleStatusActive {
			return ErrNotFound
		}
		// 撤回只针对未过期，回收只针对已过期
		if sale.Expired(now) == (status == model.SaleStatusCancelled) {
			return ErrNotFound
		}
		sale.Status = status
		s.localSales[id] = sale
		closed = &sale
		return nil
	})
	return closed, err
}

func (r *MemoryRepository) GetActiveLocalSaleBySeller(_ context.Context, sellerID, channelID string) (found *model.LocalSale, err error) {
	err = r.run(func(s *memoryState) error {
		sale, ok := findSale(s, func(sale *model.LocalSale) bool {
			return sale.SellerID == sellerID && sale.ChannelID == channelID
		})
		if !ok {
			return ErrNotFound
		}
		found = &sale
		return nil
	})
	return found, err
}

func (r *MemoryRepository) GetActiveLocalSaleByCode(_ context.Context, channelID, code string) (found *model.LocalSale, err error) {
	err = r.run(func(s *memoryState) error {
		sale, ok := findSale(s, func(sale *model.LocalSale) bool {
			return sale.ChannelID == channelID && sale.Code == code
		})
		if !ok {
			return ErrNotFound
		}
		found = &sale
		return nil
	})
	return found, err
}

func (r *MemoryRepository) ListActiveLocalSales(_ context.Context, channelID string) (list []*model.LocalSale, err error) {
	err = r.run(func(s *memoryState) error {
		for _, sale := range s.localSales {
			if sale.Status == model.SaleStatusActive && sale.ChannelID == channelID {
				sale := sale
				list = append(list, &sale)
			}
		}
		return nil
	})
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, err
}

func (r *MemoryRepository) ListExpiredLocalSaleIDs(_ context.Context, channelID string, now time.Time) (ids []int64, err error) {
	err = r.run(func(s *memoryState) error {
		for id, sale := range s.localSales {
			if sale.Status != model.SaleStatusActive || !sale.Expired(now) {
				continue
			}
			if channelID == "" || sale.ChannelID == channelID {
				ids = append(ids, id)
			}
		}
		return nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, err
}
