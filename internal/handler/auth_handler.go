package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-timetable-api/internal/middleware"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
	"github.com/noah-isme/exam-timetable-api/pkg/response"
)

// AuthHandler reports on the bearer token presented by the caller. Tokens
// themselves are minted with `examctl token`.
type AuthHandler struct{}

// NewAuthHandler creates a new handler.
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

type currentUser struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName,omitempty"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// Me godoc
// @Summary Get current operator
// @Description Returns the identity carried by the bearer token
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	info := currentUser{ID: claims.UserID, FullName: claims.FullName, Role: string(claims.Role)}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Unix()
	}
	response.JSON(c, http.StatusOK, info)
}
