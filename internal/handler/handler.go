package handler

import (
	"strconv"

	"itemsim/internal/config"
	"itemsim/internal/model"
	"itemsim/internal/service"
	"itemsim/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler holds every service the HTTP routes call into.
type Handler struct {
	authService      *service.AuthService
	characterService *service.CharacterService
	itemService      *service.ItemService
	tradeService     *service.TradeService
	equipmentService *service.EquipmentService
	rankService      *service.RankService
	log              *zap.Logger
}

// NewHandler wires the services. locker may be nil.
func NewHandler(db *gorm.DB, locker service.CharacterLocker, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		authService:      service.NewAuthService(db, cfg, log),
		characterService: service.NewCharacterService(db, cfg, locker, log),
		itemService:      service.NewItemService(db, log),
		tradeService:     service.NewTradeService(db, cfg, locker, log),
		equipmentService: service.NewEquipmentService(db, cfg, locker, log),
		rankService:      service.NewRankService(db),
		log:              log,
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	writeError(c, h.log, err)
}

// bind decodes the JSON body into req, answering 400 on failure.
func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ParamError(c, bindError(err))
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt reads an optional positive integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		response.ParamError(c, "Invalid "+name)
		return 0, false
	}
	return v, true
}

// ============================================================
// Auth
// ============================================================

type SignupRequest struct {
	Username        string `json:"username" binding:"required,lowercase,alphanum,max=64"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type SignupResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Signup POST /api/auth/signup
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Password, req.ConfirmPassword)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Created(c, SignupResponse{ID: user.ID, Username: user.Username})
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// Login POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bind(c, &req) {
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, LoginResponse{Token: token})
}

// ============================================================
// Characters
// ============================================================

type CreateCharacterRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateCharacterResponse struct {
	CharacterID int64 `json:"characterId"`
}

// CreateCharacter POST /api/characters
func (h *Handler) CreateCharacter(c *gin.Context) {
	var req CreateCharacterRequest
	if !h.bind(c, &req) {
		return
	}

	userID, _ := callerID(c)
	character, err := h.characterService.Create(c.Request.Context(), userID, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Created(c, CreateCharacterResponse{CharacterID: character.ID})
}

// DeleteCharacter DELETE /api/characters/:id
func (h *Handler) DeleteCharacter(c *gin.Context) {
	characterID, ok := pathID(c, "id")
	if !ok {
		return
	}

	userID, _ := callerID(c)
	if err := h.characterService.Delete(c.Request.Context(), characterID, userID); err != nil {
		h.fail(c, err)
		return
	}

	response.Message(c, "Character deleted successfully")
}

// GetCharacter GET /api/characters/:id
// Money is included only when the bearer owns the character.
func (h *Handler) GetCharacter(c *gin.Context) {
	characterID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var caller *int64
	if userID, ok := callerID(c); ok {
		caller = &userID
	}

	view, err := h.characterService.Details(c.Request.Context(), characterID, caller)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, view)
}

// GetInventory GET /api/characters/:id/getinv
func (h *Handler) GetInventory(c *gin.Context) {
	characterID, ok := pathID(c, "id")
	if !ok {
		return
	}

	userID, _ := callerID(c)
	bag, err := h.characterService.Inventory(c.Request.Context(), characterID, userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, bag)
}

// GetEquipment GET /api/characters/:id/getequip
func (h *Handler) GetEquipment(c *gin.Context) {
	characterID, ok := pathID(c, "id")
	if !ok {
		return
	}

	worn, err := h.characterService.Equipment(c.Request.Context(), characterID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, worn)
}

type EquipRequest struct {
	ItemCode int64 `json:"itemCode" binding:"required"`
}

// Equip POST /api/characters/:id/equip
func (h *Handler) Equip(c *gin.Context) {
	characterID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req EquipRequest
	if !h.bind(c, &req) {
		return
	}

	userID, _ := callerID(c)
	if _, err := h.equipmentService.Equip(c.Request.Context(), characterID, userID, req.ItemCode); err != nil {
		h.fail(c, err)
		return
	}

	response.Message(c, "Item equipped successfully")
}

// Unequip POST /api/characters/:id/unequip
func (h *Handler) Unequip(c *gin.Context) {
	characterID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req EquipRequest
	if !h.bind(c, &req) {
		return
	}

	userID, _ := callerID(c)
	if _, err := h.equipmentService.Unequip(c.Request.Context(), characterID, userID, req.ItemCode); err != nil {
		h.fail(c, err)
		return
	}

	response.Message(c, "Item unequipped successfully")
}

type MiningResponse struct {
	Money int64 `json:"money"`
}

// Mine POST /api/characters/:id/mining
func (h *Handler) Mine(c *gin.Context) {
	characterID, ok := pathID(c, "id")
	if !ok {
		return
	}

	userID, _ := callerID(c)
	money, err := h.characterService.Mine(c.Request.Context(), characterID, userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, MiningResponse{Money: money})
}

// GetLedger GET /api/characters/:id/ledger?page=1&pageSize=20
func (h *Handler) GetLedger(c *gin.Context) {
	characterID, ok := pathID(c, "id")
	if !ok {
		return
	}

	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	pageSize, ok := queryInt(c, "pageSize", 20)
	if !ok {
		return
	}

	userID, _ := callerID(c)
	result, err := h.characterService.Ledger(c.Request.Context(), characterID, userID, page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// Items
// ============================================================

type CreateItemRequest struct {
	ItemCode  int64           `json:"itemCode" binding:"required,gt=0"`
	ItemName  string          `json:"itemName" binding:"required"`
	ItemStat  *model.ItemStat `json:"itemStat" binding:"required"`
	ItemPrice *int64          `json:"itemPrice" binding:"required,gte=0"`
}

// CreateItem POST /api/items
func (h *Handler) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if !h.bind(c, &req) {
		return
	}

	item, err := h.itemService.Create(c.Request.Context(), req.ItemCode, req.ItemName, *req.ItemStat, *req.ItemPrice)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Created(c, item)
}

// ListItems GET /api/items
func (h *Handler) ListItems(c *gin.Context) {
	items, err := h.itemService.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, items)
}

// GetItem GET /api/items/:itemCode
func (h *Handler) GetItem(c *gin.Context) {
	itemCode, ok := pathID(c, "itemCode")
	if !ok {
		return
	}

	item, err := h.itemService.Get(c.Request.Context(), itemCode)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, item)
}

// UpdateItemRequest carries the editable catalog fields; itemPrice is
// not one of them and is rejected as an unknown field.
type UpdateItemRequest struct {
	ItemName *string         `json:"itemName"`
	ItemStat *model.ItemStat `json:"itemStat"`
}

// UpdateItem PATCH /api/items/:itemCode
func (h *Handler) UpdateItem(c *gin.Context) {
	itemCode, ok := pathID(c, "itemCode")
	if !ok {
		return
	}
	var req UpdateItemRequest
	if !h.bind(c, &req) {
		return
	}

	item, err := h.itemService.Update(c.Request.Context(), itemCode, req.ItemName, req.ItemStat)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, item)
}

type PurchaseRequest struct {
	ItemsToPurchase []service.TradeLine `json:"itemsToPurchase" binding:"required,min=1,dive"`
}

// Purchase POST /api/items/:charId/purchase
func (h *Handler) Purchase(c *gin.Context) {
	characterID, ok := pathID(c, "charId")
	if !ok {
		return
	}
	var req PurchaseRequest
	if !h.bind(c, &req) {
		return
	}

	userID, _ := callerID(c)
	if _, err := h.tradeService.Purchase(c.Request.Context(), characterID, userID, req.ItemsToPurchase); err != nil {
		h.fail(c, err)
		return
	}

	response.Message(c, "Items purchased successfully")
}

type SellRequest struct {
	ItemsToSell []service.TradeLine `json:"itemsToSell" binding:"required,min=1,dive"`
}

// Sell POST /api/items/:charId/sell
func (h *Handler) Sell(c *gin.Context) {
	characterID, ok := pathID(c, "charId")
	if !ok {
		return
	}
	var req SellRequest
	if !h.bind(c, &req) {
		return
	}

	userID, _ := callerID(c)
	if _, err := h.tradeService.Sell(c.Request.Context(), characterID, userID, req.ItemsToSell); err != nil {
		h.fail(c, err)
		return
	}

	response.Message(c, "Items sold successfully")
}

// ============================================================
// Leaderboards
// ============================================================

// RankByPower GET /api/rank/pow
func (h *Handler) RankByPower(c *gin.Context) {
	ranks, err := h.rankService.RankByPower(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, ranks)
}

// RankByHealth GET /api/rank/hp
func (h *Handler) RankByHealth(c *gin.Context) {
	ranks, err := h.rankService.RankByHealth(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, ranks)
}

// RankByItemCount GET /api/rank/item
func (h *Handler) RankByItemCount(c *gin.Context) {
	ranks, err := h.rankService.RankByItemCount(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, ranks)
}
