package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/taskhub/internal/domain/role"
)

type RoleLister interface {
	ListAll(ctx context.Context) ([]role.Role, error)
}

type RolesHandler struct {
	roles RoleLister
}

func NewRolesHandler(roles RoleLister) *RolesHandler {
	return &RolesHandler{roles: roles}
}

func (h *RolesHandler) List(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx)
	defer cancel()

	roles, err := h.roles.ListAll(cctx)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": roles})
}
