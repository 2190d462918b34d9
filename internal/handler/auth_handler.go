package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arjun-mehta/school-erp-api/internal/models"
	appErrors "github.com/arjun-mehta/school-erp-api/pkg/errors"
	"github.com/arjun-mehta/school-erp-api/pkg/response"
)

type authenticator interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
}

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	service authenticator
}

// NewAuthHandler builds a new handler.
func NewAuthHandler(service authenticator) *AuthHandler {
	return &AuthHandler{service: service}
}

// Login exchanges credentials for an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
