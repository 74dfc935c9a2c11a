package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/service/cart"
	"github.com/vladislavdragonenkov/bookstore/internal/service/catalog"
	"github.com/vladislavdragonenkov/bookstore/internal/service/identity"
	"github.com/vladislavdragonenkov/bookstore/internal/service/order"
)

// Server — HTTP-фасад магазина поверх доменных движков.
type Server struct {
	engine      *gin.Engine
	carts       *cart.Engine
	orders      *order.Engine
	catalog     *catalog.Service
	users       *identity.Static
	dispatcher  domain.EventDispatcher
	idempotency domain.IdempotencyRepository
	logger      *log.Entry
}

// NewServer создаёт HTTP-сервер и регистрирует маршруты.
func NewServer(
	carts *cart.Engine,
	orders *order.Engine,
	shop *catalog.Service,
	users *identity.Static,
	dispatcher domain.EventDispatcher,
	idempotency domain.IdempotencyRepository,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.WithField("component", "http-server")
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		engine:      r,
		carts:       carts,
		orders:      orders,
		catalog:     shop,
		users:       users,
		dispatcher:  dispatcher,
		idempotency: idempotency,
		logger:      logger,
	}
	s.registerRoutes()
	return s
}

// Engine возвращает gin.Engine для запуска и тестов.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/api/v1")
	{
		cartGroup := v1.Group("/cart")
		cartGroup.GET("", s.getCart)
		cartGroup.GET("/summary", s.getCartSummary)
		cartGroup.POST("/items", s.addCartItem)
		cartGroup.PUT("/items", s.updateCartItem)
		cartGroup.DELETE("/items", s.removeCartItem)
		cartGroup.POST("/clear", s.clearCart)
		cartGroup.POST("/selection/toggle", s.toggleSelection)
		cartGroup.POST("/selection/all", s.selectAll)
		cartGroup.DELETE("/selection", s.deselectAll)

		orderGroup := v1.Group("/orders")
		orderGroup.POST("", s.createOrder)
		orderGroup.GET(":id", s.getOrder)
		orderGroup.GET("", s.listOrders)
		orderGroup.POST(":id/status", s.updateOrderStatus)
		orderGroup.POST(":id/cancel", s.cancelOrder)
		orderGroup.POST(":id/payment-status", s.updatePaymentStatus)
		orderGroup.GET(":id/timeline", s.orderTimeline)

		adminGroup := v1.Group("/admin")
		adminGroup.POST("/books", s.addBook)
		adminGroup.POST("/broadcast", s.broadcast)

		v1.POST("/session", s.setSession)
	}
}

func (s *Server) error(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrEmptySelection),
		errors.Is(err, domain.ErrCancelReasonRequired),
		errors.Is(err, domain.ErrInvalidPaymentStatus),
		errors.Is(err, domain.ErrItemsRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrBookNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrCancellationNotAllowed),
		errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
