// Package api exposes the town service's REST surface: town CRUD, session
// creation, and conversation area creation. Handlers are thin glue over the
// towns store; all game semantics live in internal/v1/town.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/covey-town/townservice/internal/v1/logging"
	"github.com/covey-town/townservice/internal/v1/town"
)

// Handler serves the REST routes against a single towns store.
type Handler struct {
	store *town.TownsStore
}

// NewHandler creates the REST handler.
func NewHandler(store *town.TownsStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes attaches the REST routes to the router. townsLimit and
// joinLimit are per-endpoint middlewares (rate limits); nil means none.
func (h *Handler) RegisterRoutes(r gin.IRoutes, townsLimit, joinLimit gin.HandlerFunc) {
	noop := func(c *gin.Context) { c.Next() }
	if townsLimit == nil {
		townsLimit = noop
	}
	if joinLimit == nil {
		joinLimit = noop
	}

	r.POST("/towns", townsLimit, h.CreateTown)
	r.GET("/towns", townsLimit, h.ListTowns)
	r.PATCH("/towns/:townID", townsLimit, h.UpdateTown)
	r.DELETE("/towns/:townID/:townPassword", townsLimit, h.DeleteTown)
	r.POST("/sessions", joinLimit, h.JoinTown)
	r.POST("/towns/:townID/conversationAreas", joinLimit, h.CreateConversationArea)
}

type createTownRequest struct {
	FriendlyName     string `json:"friendlyName" binding:"required"`
	IsPubliclyListed bool   `json:"isPubliclyListed"`
}

type createTownResponse struct {
	CoveyTownID       string `json:"coveyTownID"`
	CoveyTownPassword string `json:"coveyTownPassword"`
}

// CreateTown handles POST /towns.
func (h *Handler) CreateTown(c *gin.Context) {
	var req createTownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "friendlyName is required"})
		return
	}

	controller := h.store.CreateTown(req.FriendlyName, req.IsPubliclyListed)
	c.JSON(http.StatusOK, createTownResponse{
		CoveyTownID:       controller.CoveyTownID(),
		CoveyTownPassword: controller.TownUpdatePassword(),
	})
}

// ListTowns handles GET /towns. Only publicly listed towns appear.
func (h *Handler) ListTowns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"towns": h.store.GetTowns()})
}

type updateTownRequest struct {
	CoveyTownPassword string  `json:"coveyTownPassword" binding:"required"`
	FriendlyName      *string `json:"friendlyName"`
	IsPubliclyListed  *bool   `json:"isPubliclyListed"`
}

// UpdateTown handles PATCH /towns/:townID. The password gates the update;
// a wrong password and an unknown town are indistinguishable to the caller.
func (h *Handler) UpdateTown(c *gin.Context) {
	var req updateTownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coveyTownPassword is required"})
		return
	}

	ok := h.store.UpdateTown(c.Param("townID"), req.CoveyTownPassword, req.FriendlyName, req.IsPubliclyListed)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid town ID or password"})
		return
	}
	c.Status(http.StatusOK)
}

// DeleteTown handles DELETE /towns/:townID/:townPassword.
func (h *Handler) DeleteTown(c *gin.Context) {
	ok := h.store.DeleteTown(c.Param("townID"), c.Param("townPassword"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid town ID or password"})
		return
	}
	c.Status(http.StatusOK)
}

type joinTownRequest struct {
	UserName    string `json:"userName" binding:"required"`
	CoveyTownID string `json:"coveyTownID" binding:"required"`
}

type joinTownResponse struct {
	CoveyUserID        string            `json:"coveyUserID"`
	CoveySessionToken  string            `json:"coveySessionToken"`
	ProviderVideoToken string            `json:"providerVideoToken"`
	CurrentPlayers     []town.PlayerView `json:"currentPlayers"`
	FriendlyName       string            `json:"friendlyName"`
	IsPubliclyListed   bool              `json:"isPubliclyListed"`
}

// JoinTown handles POST /sessions: it admits a new player into a town and
// returns the credentials the client needs to open its subscription socket
// and its video connection.
func (h *Handler) JoinTown(c *gin.Context) {
	var req joinTownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userName and coveyTownID are required"})
		return
	}

	controller := h.store.GetControllerForTown(req.CoveyTownID)
	if controller == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "town not found"})
		return
	}

	player := town.NewPlayer(req.UserName)
	session, err := controller.AddPlayer(c.Request.Context(), player)
	if err != nil {
		if errors.Is(err, town.ErrTownFull) {
			c.JSON(http.StatusConflict, gin.H{"error": "town is at maximum occupancy"})
			return
		}
		logging.Error(c.Request.Context(), "Failed to admit player",
			zap.String("town_id", req.CoveyTownID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to provision video token"})
		return
	}

	// Value snapshot: gin marshals the response after the controller's lock
	// is released, so live *Player pointers must not escape here.
	c.JSON(http.StatusOK, joinTownResponse{
		CoveyUserID:        player.ID,
		CoveySessionToken:  session.SessionToken(),
		ProviderVideoToken: session.VideoToken(),
		CurrentPlayers:     controller.PlayerSnapshots(),
		FriendlyName:       controller.FriendlyName(),
		IsPubliclyListed:   controller.IsPubliclyListed(),
	})
}

type conversationAreaRequest struct {
	SessionToken     string `json:"sessionToken" binding:"required"`
	ConversationArea struct {
		Label       string           `json:"label"`
		Topic       string           `json:"topic"`
		BoundingBox town.BoundingBox `json:"boundingBox"`
	} `json:"conversationArea" binding:"required"`
}

// CreateConversationArea handles POST /towns/:townID/conversationAreas.
// The session token proves the requester is a player in the town.
func (h *Handler) CreateConversationArea(c *gin.Context) {
	var req conversationAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionToken and conversationArea are required"})
		return
	}

	controller := h.store.GetControllerForTown(c.Param("townID"))
	if controller == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "town not found"})
		return
	}
	if controller.SessionForToken(req.SessionToken) == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	area := town.NewConversationArea(
		req.ConversationArea.Label,
		req.ConversationArea.Topic,
		req.ConversationArea.BoundingBox,
	)
	if !controller.AddConversationArea(area) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation area rejected"})
		return
	}
	c.Status(http.StatusOK)
}
