package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/service/catalog"
	"github.com/vladislavdragonenkov/bookstore/internal/service/order"
)

const idempotencyTTL = 24 * time.Hour

// --- Cart handlers ---

type cartItemReq struct {
	BookID      string `json:"book_id" binding:"required"`
	VariationID string `json:"variation_id"`
	Qty         int32  `json:"qty"`
}

func (r cartItemReq) key() domain.ItemKey {
	return domain.ItemKey{BookID: r.BookID, VariationID: r.VariationID}
}

type cartSummaryResp struct {
	ItemCount          int32 `json:"item_count"`
	SelectedCount      int32 `json:"selected_count"`
	TotalMinor         int64 `json:"total_minor"`
	SelectedTotalMinor int64 `json:"selected_total_minor"`
}

func (s *Server) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, s.carts.Cart())
}

func (s *Server) getCartSummary(c *gin.Context) {
	c.JSON(http.StatusOK, cartSummaryResp{
		ItemCount:          s.carts.ItemCount(),
		SelectedCount:      s.carts.SelectedCount(),
		TotalMinor:         s.carts.TotalMinor(),
		SelectedTotalMinor: s.carts.SelectedTotalMinor(),
	})
}

func (s *Server) addCartItem(c *gin.Context) {
	var req cartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	// Цена и метаданные берутся из каталога в момент добавления.
	book, err := s.catalog.GetBook(req.BookID, req.VariationID)
	if err != nil {
		s.error(c, err)
		return
	}

	state, err := s.carts.AddItem(c.Request.Context(), book, req.Qty)
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) updateCartItem(c *gin.Context) {
	var req cartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	state, err := s.carts.UpdateQuantity(c.Request.Context(), req.key(), req.Qty)
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) removeCartItem(c *gin.Context) {
	var req cartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	state, err := s.carts.RemoveItem(c.Request.Context(), req.key())
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) clearCart(c *gin.Context) {
	state, err := s.carts.Clear(c.Request.Context())
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) toggleSelection(c *gin.Context) {
	var req cartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	state, err := s.carts.ToggleSelection(c.Request.Context(), req.key())
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) selectAll(c *gin.Context) {
	state, err := s.carts.SelectAll(c.Request.Context())
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) deselectAll(c *gin.Context) {
	state, err := s.carts.DeselectAll(c.Request.Context())
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// --- Order handlers ---

type createOrderReq struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
	Notes           string `json:"notes"`
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	input := order.CreateOrderInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
		Notes:           req.Notes,
	}

	key := c.GetHeader("Idempotency-Key")
	if key == "" || s.idempotency == nil {
		placed, err := s.orders.CreateOrder(c.Request.Context(), input)
		if err != nil {
			s.error(c, err)
			return
		}
		c.JSON(http.StatusCreated, placed)
		return
	}

	hash := requestHash(req)
	record, err := s.idempotency.CreateProcessing(key, hash, time.Now().UTC().Add(idempotencyTTL))
	switch {
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		s.replayIdempotent(c, record)
		return
	case err != nil:
		s.error(c, err)
		return
	}

	placed, err := s.orders.CreateOrder(c.Request.Context(), input)
	if err != nil {
		status := mapErrorToStatus(err)
		body, _ := json.Marshal(gin.H{"error": err.Error()})
		if markErr := s.idempotency.MarkFailed(key, body, status); markErr != nil {
			s.logger.WithError(markErr).Warn("failed to mark idempotency record as failed")
		}
		c.Data(status, "application/json", body)
		return
	}

	body, err := json.Marshal(placed)
	if err != nil {
		s.error(c, err)
		return
	}
	if markErr := s.idempotency.MarkDone(key, body, http.StatusCreated); markErr != nil {
		s.logger.WithError(markErr).Warn("failed to mark idempotency record as done")
	}
	c.Data(http.StatusCreated, "application/json", body)
}

// replayIdempotent возвращает сохранённый ответ для повторного запроса.
func (s *Server) replayIdempotent(c *gin.Context, record domain.IdempotencyRecord) {
	if !record.Replayable() {
		c.JSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is still processing"})
		return
	}
	c.Data(record.HTTPStatus, "application/json", record.ResponseBody)
}

func requestHash(req createOrderReq) string {
	raw, _ := json.Marshal(req)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func (s *Server) getOrder(c *gin.Context) {
	placed, err := s.orders.GetOrderByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, placed)
}

func (s *Server) listOrders(c *gin.Context) {
	if status := c.Query("status"); status != "" {
		orders, err := s.orders.GetOrdersByStatus(c.Request.Context(), domain.OrderStatus(status))
		if err != nil {
			s.error(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
		return
	}

	orders, err := s.orders.GetUserOrders(c.Request.Context(), s.users.Current().ID)
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

type updateStatusReq struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updated, err := s.orders.UpdateOrderStatus(c.Request.Context(), c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type cancelOrderReq struct {
	Reason string `json:"reason"`
}

func (s *Server) cancelOrder(c *gin.Context) {
	var req cancelOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	canceled, err := s.orders.CancelOrder(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, canceled)
}

func (s *Server) updatePaymentStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updated, err := s.orders.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), domain.PaymentStatus(req.Status))
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) orderTimeline(c *gin.Context) {
	timeline, err := s.orders.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, timeline)
}

// --- Admin handlers ---

type addBookReq struct {
	BookID      string `json:"book_id" binding:"required"`
	VariationID string `json:"variation_id"`
	Title       string `json:"title" binding:"required"`
	Author      string `json:"author"`
	PriceMinor  int64  `json:"price_minor"`
	Stock       int32  `json:"stock"`
}

func (s *Server) addBook(c *gin.Context) {
	var req addBookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	book := catalog.Book{
		Ref: domain.BookRef{
			BookID:      req.BookID,
			VariationID: req.VariationID,
			Title:       req.Title,
			Author:      req.Author,
			PriceMinor:  req.PriceMinor,
		},
		Stock: req.Stock,
	}
	event := s.catalog.AddBook(book)
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(event)
	}
	c.JSON(http.StatusCreated, book.Ref)
}

type broadcastReq struct {
	Type    string `json:"type" binding:"required"`
	Message string `json:"message" binding:"required"`
}

func (s *Server) broadcast(c *gin.Context) {
	var req broadcastReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var eventType domain.EventType
	switch req.Type {
	case "promo":
		eventType = domain.EventTypePromotionalOffer
	case "maintenance":
		eventType = domain.EventTypeSystemMaintenance
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown broadcast type"})
		return
	}

	event := domain.Event{
		Type:      eventType,
		Message:   req.Message,
		Timestamp: time.Now().UTC(),
	}
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(event)
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// --- Session handlers ---

type sessionReq struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// setSession переключает текущего пользователя. Пустой user_id означает
// логаут в гостевую сессию. Корзина перечитывается под нового владельца.
func (s *Server) setSession(c *gin.Context) {
	var req sessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if req.UserID == "" {
		s.users.Clear()
	} else {
		role := domain.UserRole(req.Role)
		if role != domain.UserRoleStaff {
			role = domain.UserRoleCustomer
		}
		s.users.Set(domain.User{ID: req.UserID, Name: req.Name, Role: role})
	}

	user := s.users.Current()
	if err := s.carts.SetUser(c.Request.Context(), user.ID); err != nil {
		s.error(c, err)
		return
	}
	if err := s.orders.Reload(c.Request.Context()); err != nil {
		s.error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
