package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

const (
	// pongWait is how long a dashboard socket may stay silent.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// writeWait bounds a single socket write.
	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// DashboardHandler serves a driver's dashboard state and actions.
type DashboardHandler struct {
	sessions *service.SessionRegistry
	log      *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(sessions *service.SessionRegistry, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{sessions: sessions, log: log}
}

// DecisionResponse is the HTTP response for accepting or rejecting an order.
type DecisionResponse struct {
	Order   domain.Order          `json:"order"`
	Phase   service.DecisionPhase `json:"phase"`
	Message string                `json:"message,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Name string `json:"name"`
}

// Get handles GET /v1/dashboard
func (h *DashboardHandler) Get(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	snapshot, err := ctrl.Snapshot()
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, snapshot)
}

// Accept handles POST /v1/orders/:id/accept
func (h *DashboardHandler) Accept(c *gin.Context) {
	h.decide(c, domain.OrderStatusAccepted)
}

// Reject handles POST /v1/orders/:id/reject
func (h *DashboardHandler) Reject(c *gin.Context) {
	h.decide(c, domain.OrderStatusRejected)
}

func (h *DashboardHandler) decide(c *gin.Context, decision domain.OrderStatus) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid order id"})
		return
	}

	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	// The write must outlive the request if the driver navigates away.
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := ctrl.Decide(ctx, orderID, decision)
	if err != nil {
		var partial *service.PartialCommitError
		if errors.As(err, &partial) && result != nil {
			respondJSON(c, http.StatusMultiStatus, DecisionResponse{
				Order: result.Order,
				Phase: result.Phase,
				Error: err.Error(),
			})
			return
		}
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, DecisionResponse{
		Order:   result.Order,
		Phase:   result.Phase,
		Message: fmt.Sprintf("Order %d %s", orderID, decision),
	})
}

// RegisterDriver handles POST /v1/drivers/register
func (h *DashboardHandler) RegisterDriver(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	if err := ctrl.RegisterDriver(req.Name); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Driver %s registered successfully!", req.Name),
	})
}

// Events handles GET /v1/dashboard/events. The socket first receives the
// current snapshot, then every controller event until the session closes.
func (h *DashboardHandler) Events(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	snapshot, events, cancel, err := ctrl.Watch()
	if err != nil {
		respondError(c, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.log.Debug("dashboard socket closed", zap.Error(err))
				}
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(gin.H{"type": "snapshot", "snapshot": snapshot}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// controller opens the caller's session controller. A session that cannot
// be loaded is discarded and answered with 401 so the client signs in again.
func (h *DashboardHandler) controller(c *gin.Context) (*service.OrderController, bool) {
	session := middleware.GetSession(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "not authenticated"})
		return nil, false
	}

	ctrl, err := h.sessions.Open(c.Request.Context(), session.ID, session.Identity, session.ExpiresAt)
	if err != nil {
		h.log.Error("failed to open dashboard session",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		h.sessions.Close(session.ID)
		respondError(c, err)
		return nil, false
	}
	return ctrl, true
}
