package metrics

import (
	"fmt"

	"github.com/lk2023060901/shardbazaar/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
)

// Config 指标配置
type Config struct {
	// Namespace 指标命名空间
	Namespace string `mapstructure:"namespace"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{Namespace: "bazaar"}
}

// BazaarMetrics 集市服务指标
type BazaarMetrics struct {
	config *Config

	// 刷新与认领
	SpawnTotal *prometheus.CounterVec // 刷新次数（按来源、结果）
	ClaimTotal *prometheus.CounterVec // 认领次数（按结果）
	ReapTotal  *prometheus.CounterVec // 回收次数（按类型）

	// 交易
	ListingTotal    *prometheus.CounterVec // 上架次数（按类型、结果）
	PurchaseTotal   *prometheus.CounterVec // 购买次数（按类型、结果）
	MarketOccupancy prometheus.Gauge       // 全服商店当前挂单数

	// 通知
	NoticeTotal *prometheus.CounterVec // 消息发送（按结果）

	// 数据库
	DBQueryTotal    *prometheus.CounterVec
	DBQueryDuration *prometheus.HistogramVec
}

// New 创建集市指标（未注册，调用 Register 注册到 Registry）
func New(cfg *Config) (*BazaarMetrics, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge metrics config: %w", err)
	}
	ns := newCfg.Namespace

	return &BazaarMetrics{
		config: newCfg,

		SpawnTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "spawns_total", Help: "刷新总数"},
			[]string{"source", "result"}, // source: schedule/force
		),
		ClaimTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "claims_total", Help: "认领总数"},
			[]string{"result"},
		),
		ReapTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "reaps_total", Help: "过期回收总数"},
			[]string{"kind"}, // kind: market/local/spawn
		),
		ListingTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "listings_total", Help: "上架总数"},
			[]string{"kind", "result"},
		),
		PurchaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "purchases_total", Help: "购买总数"},
			[]string{"kind", "result"},
		),
		MarketOccupancy: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: ns, Name: "market_listings", Help: "全服商店当前挂单数"},
		),
		NoticeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "notices_total", Help: "频道消息发送总数"},
			[]string{"result"},
		),
		DBQueryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "db_queries_total", Help: "数据库查询总数"},
			[]string{"operation", "result"},
		),
		DBQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "db_query_duration_seconds",
				Help:      "数据库查询延迟（秒）",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),
	}, nil
}

// Register 注册指标到 Prometheus Registry
func (m *BazaarMetrics) Register(registerer prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.SpawnTotal,
		m.ClaimTotal,
		m.ReapTotal,
		m.ListingTotal,
		m.PurchaseTotal,
		m.MarketOccupancy,
		m.NoticeTotal,
		m.DBQueryTotal,
		m.DBQueryDuration,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}

// RecordSpawn 记录刷新
func (m *BazaarMetrics) RecordSpawn(source string, err error) {
	m.SpawnTotal.WithLabelValues(source, result(err)).Inc()
}

// RecordClaim 记录认领，result 为错误码或 success
func (m *BazaarMetrics) RecordClaim(outcome string) {
	m.ClaimTotal.WithLabelValues(outcome).Inc()
}

// RecordReap 记录回收
func (m *BazaarMetrics) RecordReap(kind string, n int) {
	m.ReapTotal.WithLabelValues(kind).Add(float64(n))
}

// RecordListing 记录上架
func (m *BazaarMetrics) RecordListing(kind, outcome string) {
	m.ListingTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordPurchase 记录购买
func (m *BazaarMetrics) RecordPurchase(kind, outcome string) {
	m.PurchaseTotal.WithLabelValues(kind, outcome).Inc()
}

// SetMarketOccupancy 设置全服商店挂单数
func (m *BazaarMetrics) SetMarketOccupancy(n int) {
	m.MarketOccupancy.Set(float64(n))
}

// RecordNotice 记录消息发送
func (m *BazaarMetrics) RecordNotice(err error) {
	m.NoticeTotal.WithLabelValues(result(err)).Inc()
}

// RecordDBQuery 记录数据库查询
func (m *BazaarMetrics) RecordDBQuery(operation string, err error, duration float64) {
	m.DBQueryTotal.WithLabelValues(operation, result(err)).Inc()
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
