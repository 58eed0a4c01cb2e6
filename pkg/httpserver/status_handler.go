package httpserver

import (
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/internal/execution"
	"github.com/sharehunt/shares-sniper/internal/monitor"
	"github.com/sharehunt/shares-sniper/internal/store"
	"github.com/sharehunt/shares-sniper/pkg/types"
)

// ExecutorStatus exposes the trade executor's busy/queue state.
type ExecutorStatus interface {
	Status() execution.Status
}

// MonitorStatus exposes the event monitor's state.
type MonitorStatus interface {
	GetStatus() monitor.Status
}

// StatusHandler serves the aggregated operational snapshot.
type StatusHandler struct {
	candidates store.CandidateStore
	ledger     store.PositionLedger
	executor   ExecutorStatus
	monitor    MonitorStatus
	logger     *zap.Logger
}

// NewStatusHandler creates a status handler over the running components.
func NewStatusHandler(
	candidates store.CandidateStore,
	ledger store.PositionLedger,
	executor ExecutorStatus,
	mon MonitorStatus,
	logger *zap.Logger,
) *StatusHandler {
	return &StatusHandler{
		candidates: candidates,
		ledger:     ledger,
		executor:   executor,
		monitor:    mon,
		logger:     logger,
	}
}

// PositionView is one holding in the status response.
type PositionView struct {
	TokenAddress string `json:"tokenAddress"`
	TotalAmount  uint64 `json:"totalAmount"`
	Purchases    int    `json:"purchases"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Candidates map[types.CandidateStatus]int `json:"candidates"`
	Positions  []PositionView                `json:"positions"`
	Executor   execution.Status              `json:"executor"`
	Monitor    monitor.Status                `json:"monitor"`
}

// ErrorResponse is an HTTP error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleStatus handles GET /api/status.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.candidates.CountByStatus(r.Context())
	if err != nil {
		h.writeError(w, "count candidates: "+err.Error())
		return
	}

	positions, err := h.ledger.List(r.Context())
	if err != nil {
		h.writeError(w, "list positions: "+err.Error())
		return
	}

	views := make([]PositionView, 0, len(positions))
	for _, pos := range positions {
		views = append(views, PositionView{
			TokenAddress: pos.TokenAddress,
			TotalAmount:  pos.TotalAmount,
			Purchases:    len(pos.Purchases),
		})
	}

	resp := StatusResponse{
		Candidates: counts,
		Positions:  views,
		Executor:   h.executor.Status(),
		Monitor:    h.monitor.GetStatus(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *StatusHandler) writeError(w http.ResponseWriter, msg string) {
	h.logger.Error("status-handler-failed", zap.String("error", msg))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
