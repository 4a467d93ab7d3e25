package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prepdash/prepdash/config"
	"github.com/prepdash/prepdash/services"
	"github.com/prepdash/prepdash/utils"
)

// LinkedInController exposes the three-legged OAuth flow and the share action.
type LinkedInController struct {
	svc *services.LinkedIn
}

// NewLinkedInController creates the controller over the given service.
func NewLinkedInController(svc *services.LinkedIn) *LinkedInController {
	return &LinkedInController{svc: svc}
}

// Start mints a state token for the authenticated caller and returns the
// provider authorization URL.
func (l *LinkedInController) Start(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	if !config.Get().LinkedInEnabled() {
		utils.Error(ctx, http.StatusBadRequest, 40060, "linkedin oauth not configured")
		return
	}

	url, err := l.svc.StartURL(ctx.Request.Context(), userID)
	if err != nil {
		utils.Sugar.Errorf("linkedin start failed user=%d: %v", userID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to start authorization")
		return
	}

	utils.Success(ctx, gin.H{"authorization_url": url})
}

// Callback is the provider redirect target. The state row is consumed
// (deleted) no matter the outcome, so a token can never be replayed.
func (l *LinkedInController) Callback(ctx *gin.Context) {
	code := ctx.Query("code")
	state := ctx.Query("state")
	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40061, "missing code or state")
		return
	}

	userID, err := l.svc.HandleCallback(ctx.Request.Context(), code, state)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStateNotFound), errors.Is(err, services.ErrStateExpired):
			utils.Error(ctx, http.StatusBadRequest, 40062, "invalid or expired state")
		default:
			utils.Sugar.Errorf("linkedin callback failed: %v", err)
			utils.Error(ctx, http.StatusBadRequest, 40063, "authorization failed")
		}
		return
	}

	utils.Sugar.Infof("linkedin connected user=%d", userID)
	ctx.Redirect(http.StatusFound, config.Get().SiteBaseURL+"?linkedin=connected")
}

// Status reports whether the caller has a connected account, so the UI can
// show either the connect button or the share action.
func (l *LinkedInController) Status(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	connected, err := l.svc.Connected(ctx.Request.Context(), userID)
	if err != nil {
		utils.Sugar.Errorf("linkedin status failed user=%d: %v", userID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to load status")
		return
	}

	utils.Success(ctx, gin.H{"connected": connected})
}

// Share posts text on the connected account.
func (l *LinkedInController) Share(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40064, "invalid request payload")
		return
	}

	text := strings.TrimSpace(utils.Sanitize(req.Text))
	if text == "" {
		utils.Error(ctx, http.StatusBadRequest, 40065, "share text is empty")
		return
	}

	err := l.svc.Share(ctx.Request.Context(), userID, text)
	if err != nil {
		var upstream *services.UpstreamError
		switch {
		case errors.Is(err, services.ErrNotConnected):
			utils.Error(ctx, http.StatusBadRequest, 40066, "linkedin account not connected")
		case errors.As(err, &upstream):
			// Forward the provider's error body so the UI can show it.
			ctx.Data(http.StatusBadRequest, "application/json", upstream.Body)
		default:
			utils.Sugar.Errorf("linkedin share failed user=%d: %v", userID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to share post")
		}
		return
	}

	utils.Success(ctx, gin.H{"ok": true})
}
