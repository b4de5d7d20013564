package handler

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/service"
	"github.com/lk2023060901/shardbazaar/pkg/logger"
	"github.com/lk2023060901/shardbazaar/pkg/web"
)

// errorStatus 业务错误码到 HTTP 状态码
var errorStatus = map[string]int{
	"NOT_FOUND":            http.StatusNotFound,
	"NOT_AVAILABLE":        http.StatusConflict,
	"CAPACITY_EXCEEDED":    http.StatusConflict,
	"DUPLICATE_ACTIVE":     http.StatusConflict,
	"SELF_PURCHASE":        http.StatusBadRequest,
	"INSUFFICIENT_FUNDS":   http.StatusPaymentRequired,
	"UNAUTHORIZED":         http.StatusForbidden,
	"TRANSIENT_STORE":      http.StatusServiceUnavailable,
	"NOT_REGISTERED":       http.StatusForbidden,
	"INVALID_PRICE":        http.StatusBadRequest,
	"TIER_TOO_LOW":         http.StatusBadRequest,
	"WRONG_GUESS":          http.StatusUnprocessableEntity,
	"CHANNEL_NOT_ELIGIBLE": http.StatusForbidden,
}

// CommandHandler 集市命令入口，供聊天网关调用
type CommandHandler struct {
	logger logger.Logger
	spawns *service.SpawnService
	market *service.MarketService
	local  *service.LocalSaleService
}

// NewCommandHandler 创建命令处理器
func NewCommandHandler(
	l logger.Logger,
	spawns *service.SpawnService,
	market *service.MarketService,
	local *service.LocalSaleService,
) *CommandHandler {
	return &CommandHandler{
		logger: l.Named("handler.command"),
		spawns: spawns,
		market: market,
		local:  local,
	}
}

// Register 注册路由
func (h *CommandHandler) Register(r gin.IRouter) {
	api := r.Group("/api/v1")
	{
		api.GET("/channels/:channel/spawn", h.GetActiveSpawn)
		api.POST("/channels/:channel/spawn", h.ForceSpawn)
		api.POST("/channels/:channel/spawn/claim", h.Claim)

		api.GET("/market", h.BrowseMarket)
		api.POST("/market/listings", h.ListOnMarket)
		api.POST("/market/purchases", h.PurchaseFromMarket)

		api.GET("/channels/:channel/sales", h.BrowseLocal)
		api.POST("/channels/:channel/sales", h.ListLocally)
		api.POST("/channels/:channel/sales/purchases", h.PurchaseLocally)
		api.POST("/channels/:channel/sales/cancel", h.CancelLocalSale)
	}
}

// fail 写入业务错误；内部错误不把细节返回调用方
func (h *CommandHandler) fail(c *gin.Context, op string, err error) {
	code := service.ErrorCode(err)
	status, ok := errorStatus[code]
	if !ok {
		// 挂到 gin 上下文，由访问日志与错误上报中间件统一处理
		_ = c.Error(errors.Wrap(err, op))
		web.Error(c, http.StatusInternalServerError, web.CodeInternal, "internal error")
		return
	}
	h.logger.DebugContext(c.Request.Context(), "command rejected", "op", op, "code", code, "error", err)
	web.Error(c, status, code, err.Error())
}

// ============ 刷新 ============

// ForceSpawnRequest 立即刷新
type ForceSpawnRequest struct {
	// Target 收藏品 ID 或名称，为空时随机
	Target string `json:"target"`
}

// ForceSpawn 立即在频道内刷新
func (h *CommandHandler) ForceSpawn(c *gin.Context) {
	var req ForceSpawnRequest
	if c.Request.ContentLength != 0 && !web.BindAndValidate(c, &req) {
		return
	}
	sp, err := h.spawns.ForceSpawn(c.Request.Context(), c.Param("channel"), req.Target)
	if err != nil {
		h.fail(c, "force_spawn", err)
		return
	}
	web.Success(c, spawnView(sp))
}

// GetActiveSpawn 频道当前刷新
func (h *CommandHandler) GetActiveSpawn(c *gin.Context) {
	sp, err := h.spawns.GetActiveSpawn(c.Request.Context(), c.Param("channel"))
	if err != nil {
		h.fail(c, "get_active_spawn", err)
		return
	}
	web.Success(c, spawnView(sp))
}

// ClaimRequest 认领
type ClaimRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// Claim 猜名认领频道刷新
func (h *CommandHandler) Claim(c *gin.Context) {
	var req ClaimRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	// 聊天输入的首尾空白在这里去掉，服务层按名称精确比较
	inst, err := h.spawns.Claim(c.Request.Context(), req.PlayerID, c.Param("channel"), strings.TrimSpace(req.Name))
	if err != nil {
		h.fail(c, "claim", err)
		return
	}
	web.Success(c, instanceView(inst))
}

// ============ 全服商店 ============

// BrowseMarketQuery 浏览商店
type BrowseMarketQuery struct {
	// Index 从 1 开始，0 表示全部
	Index int `form:"index" binding:"gte=0"`
}

// BrowseMarket 浏览全服商店
func (h *CommandHandler) BrowseMarket(c *gin.Context) {
	var q BrowseMarketQuery
	if !web.BindAndValidate(c, &q) {
		return
	}
	list, err := h.market.Browse(c.Request.Context(), q.Index)
	if err != nil {
		h.fail(c, "browse_market", err)
		return
	}
	views := make([]ListingView, 0, len(list))
	for _, l := range list {
		views = append(views, listingView(l))
	}
	web.Success(c, views)
}

// ListRequest 上架，Index 为收藏中的序号（从 1 开始）
type ListRequest struct {
	SellerID string `json:"seller_id" binding:"required"`
	Index    int    `json:"index" binding:"required,gte=1"`
	Price    int64  `json:"price"`
}

// ListOnMarket 上架到全服商店
func (h *CommandHandler) ListOnMarket(c *gin.Context) {
	var req ListRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	listing, err := h.market.List(c.Request.Context(), req.SellerID, req.Index, req.Price)
	if err != nil {
		h.fail(c, "list_on_market", err)
		return
	}
	web.Success(c, listingView(listing))
}

// PurchaseRequest 按购买码购买
type PurchaseRequest struct {
	BuyerID string `json:"buyer_id" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

// PurchaseFromMarket 从全服商店购买
func (h *CommandHandler) PurchaseFromMarket(c *gin.Context) {
	var req PurchaseRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	res, err := h.market.Purchase(c.Request.Context(), req.BuyerID, req.Code)
	if err != nil {
		h.fail(c, "purchase_from_market", err)
		return
	}
	web.Success(c, purchaseView(res))
}

// ============ 频道出售 ============

// BrowseLocal 频道内进行中的出售
func (h *CommandHandler) BrowseLocal(c *gin.Context) {
	list, err := h.local.Browse(c.Request.Context(), c.Param("channel"))
	if err != nil {
		h.fail(c, "browse_local", err)
		return
	}
	views := make([]SaleView, 0, len(list))
	for _, s := range list {
		views = append(views, saleView(s))
	}
	web.Success(c, views)
}

// ListLocally 在频道内出售
func (h *CommandHandler) ListLocally(c *gin.Context) {
	var req ListRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	sale, err := h.local.List(c.Request.Context(), req.SellerID, req.Index, req.Price, c.Param("channel"))
	if err != nil {
		h.fail(c, "list_locally", err)
		return
	}
	web.Success(c, saleView(sale))
}

// PurchaseLocally 购买频道内的出售
func (h *CommandHandler) PurchaseLocally(c *gin.Context) {
	var req PurchaseRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	res, err := h.local.Purchase(c.Request.Context(), req.BuyerID, req.Code, c.Param("channel"))
	if err != nil {
		h.fail(c, "purchase_locally", err)
		return
	}
	web.Success(c, purchaseView(res))
}

// CancelRequest 撤回出售，Code 为空时撤回卖家自己的出售
type CancelRequest struct {
	SellerID string `json:"seller_id" binding:"required"`
	Code     string `json:"code"`
}

// CancelLocalSale 撤回频道内的出售
func (h *CommandHandler) CancelLocalSale(c *gin.Context) {
	var req CancelRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	sale, err := h.local.Cancel(c.Request.Context(), req.SellerID, c.Param("channel"), req.Code)
	if err != nil {
		h.fail(c, "cancel_local_sale", err)
		return
	}
	web.Success(c, saleView(sale))
}
