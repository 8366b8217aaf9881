package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
	"github.com/davicafu/orderbus/internal/shared/infra/relayer"
	"github.com/davicafu/orderbus/pkg/utils"
)

// DeadLetterReplayer es lo que el admin necesita del relayer.
type DeadLetterReplayer interface {
	Pending(ctx context.Context) ([]sharedDomain.DeadLetter, error)
	ReplayBatch(ctx context.Context) (relayer.ReplayReport, error)
}

var _ DeadLetterReplayer = (*relayer.Replayer)(nil)

type AdminHandler struct {
	replayer DeadLetterReplayer
}

func NewAdminHandler(replayer DeadLetterReplayer) *AdminHandler {
	return &AdminHandler{replayer: replayer}
}

// ListDeadLetters endpoint GET /admin/dead-letters
func (h *AdminHandler) ListDeadLetters(c *gin.Context) {
	letters, err := h.replayer.Pending(c.Request.Context())
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	if letters == nil {
		letters = []sharedDomain.DeadLetter{}
	}
	utils.SendSuccess(c, http.StatusOK, letters)
}

// ReplayDeadLetters endpoint POST /admin/dead-letters/replay
func (h *AdminHandler) ReplayDeadLetters(c *gin.Context) {
	report, err := h.replayer.ReplayBatch(c.Request.Context())
	if err != nil {
		utils.SendInternalServerError(c, err.Error())
		return
	}
	utils.SendSuccess(c, http.StatusOK, report)
}
