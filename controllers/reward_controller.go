package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepdash/prepdash/services"
	"github.com/prepdash/prepdash/utils"
)

// RewardController exposes the coin reward ledger.
type RewardController struct {
	ledger *services.RewardLedger
}

// NewRewardController creates the controller over the given ledger.
func NewRewardController(ledger *services.RewardLedger) *RewardController {
	return &RewardController{ledger: ledger}
}

// Award grants coins for a completed event. A repeat submission for the same
// event resolves to awarded=false with no error and no balance change, so
// double clicks and second tabs are harmless.
func (r *RewardController) Award(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		EventType string `json:"event_type" binding:"required"`
		EventID   string `json:"event_id" binding:"required"`
		Coins     int64  `json:"coins" binding:"required"`
		// Origin is echoed back so the UI can anchor its coin animation.
		Origin *struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"origin"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	event := services.RewardEvent{
		UserID:    userID,
		EventType: req.EventType,
		EventID:   req.EventID,
		Coins:     req.Coins,
	}

	result, err := r.ledger.Award(ctx.Request.Context(), event)
	if err != nil {
		if errors.Is(err, services.ErrInvalidEvent) {
			utils.Error(ctx, http.StatusBadRequest, 40021, err.Error())
			return
		}
		utils.Sugar.Errorf("award failed user=%d event=%s: %v", userID, req.EventID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to record award")
		return
	}

	utils.Success(ctx, gin.H{
		"awarded":     result.Awarded,
		"coins":       result.Coins,
		"total_coins": result.TotalCoins,
		"origin":      req.Origin,
	})
}

// Completed lists event ids already awarded in a category so the UI stops
// offering the award action for them.
func (r *RewardController) Completed(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	eventType := ctx.Query("event_type")
	ids, err := r.ledger.CompletedEventIDs(ctx.Request.Context(), userID, eventType)
	if err != nil {
		if errors.Is(err, services.ErrInvalidEvent) {
			utils.Error(ctx, http.StatusBadRequest, 40022, err.Error())
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load completed events")
		return
	}
	if ids == nil {
		ids = []string{}
	}

	utils.Success(ctx, gin.H{"event_type": eventType, "event_ids": ids})
}

// Coins returns the user's current balance.
func (r *RewardController) Coins(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	total, err := r.ledger.UserCoins(ctx.Request.Context(), userID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load balance")
		return
	}

	utils.Success(ctx, gin.H{"coins": total})
}
