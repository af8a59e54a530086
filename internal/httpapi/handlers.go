package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ticketfire/backend/internal/db"
	"github.com/ticketfire/backend/internal/nlp"
	"github.com/ticketfire/backend/internal/pipeline"
	"github.com/ticketfire/backend/internal/session"
)

// Handler groups the server's external collaborators behind the HTTP
// surface. It holds no business logic of its own beyond request
// parsing/validation and response shaping.
type Handler struct {
	Store        *db.Store
	Orchestrator *pipeline.Orchestrator
	NLPPool      *nlp.Pool
	Sessions     *session.Store
	Validator    *validator.Validate
	Logger       zerolog.Logger
	AdminKey     string
	CountryDefault string
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Upload accepts the three-table CSV batch, runs it through the full
// pipeline, snapshots the result, and returns the batch summary.
func (h *Handler) Upload(c *gin.Context) {
	ticketsFile, err := c.FormFile("tickets")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "INPUT_INVALID", "missing tickets file")
		return
	}
	tickets, parseErrs := parseTicketsCSV(ticketsFile)
	if len(tickets) == 0 {
		msg := "no ticket rows parsed"
		if len(parseErrs) > 0 {
			msg = parseErrs[0]
		}
		errorJSON(c, http.StatusBadRequest, "INPUT_INVALID", msg)
		return
	}

	if managersFile, err := c.FormFile("managers"); err == nil {
		managers, _ := parseManagersCSV(managersFile)
		if len(managers) > 0 {
			if err := h.Store.InsertManagers(c.Request.Context(), managers); err != nil {
				errorJSON(c, http.StatusInternalServerError, "PERSIST_FAILURE", err.Error())
				return
			}
		}
	}
	if officesFile, err := c.FormFile("offices"); err == nil {
		offices, _ := parseOfficesCSV(officesFile)
		if len(offices) > 0 {
			if err := h.Store.InsertOffices(c.Request.Context(), offices); err != nil {
				errorJSON(c, http.StatusInternalServerError, "PERSIST_FAILURE", err.Error())
				return
			}
		}
	}

	result, err := h.Orchestrator.Run(c.Request.Context(), tickets)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "PERSIST_FAILURE", err.Error())
		return
	}

	h.Sessions.Put(result.SessionID, session.Snapshot{
		Summary:  result.Summary,
		Tickets:  result.Tickets,
		Managers: result.Managers,
	})

	resp := gin.H{
		"session_id":        result.Summary.SessionID,
		"ticket_count":      result.Summary.TicketCount,
		"manager_count":     result.Summary.ManagerCount,
		"status":            result.Summary.Status,
		"nlp_total_time_ms": result.Summary.NLPTotalMs,
		"nlp_avg_time_ms":   result.Summary.NLPAvgMs,
	}
	if len(parseErrs) > 0 {
		resp["row_errors"] = parseErrs
	}
	c.JSON(http.StatusOK, resp)
}

// SessionSnapshot returns the tickets/managers recorded at the end of a
// batch run.
func (h *Handler) SessionSnapshot(c *gin.Context) {
	id := c.Param("id")
	snap, ok := h.Sessions.Get(id)
	if !ok {
		errorJSON(c, http.StatusNotFound, "NOT_FOUND", "unknown session id")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets":  snap.Tickets,
		"managers": snap.Managers,
	})
}

var availableModels = map[string]bool{"gemma3:1b": true, "gemma3:4b": true}
var availableConcurrency = map[int64]bool{1: true, 2: true, 4: true, 6: true, 8: true}

// GetSettings returns the NLP pool's current model id and concurrency.
func (h *Handler) GetSettings(c *gin.Context) {
	s := h.NLPPool.Settings()
	c.JSON(http.StatusOK, gin.H{"model_id": s.ModelID, "concurrency": s.Concurrency})
}

type settingsRequest struct {
	ModelID     string `json:"model_id" binding:"required"`
	Concurrency int64  `json:"concurrency" binding:"required"`
}

// UpdateSettings swaps the NLP pool's model id and concurrency, rejecting
// any value outside the closed sets the UI offers.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INPUT_INVALID", err.Error())
		return
	}
	if !availableModels[req.ModelID] {
		errorJSON(c, http.StatusBadRequest, "INPUT_INVALID", "unknown model_id")
		return
	}
	if !availableConcurrency[req.Concurrency] {
		errorJSON(c, http.StatusBadRequest, "INPUT_INVALID", "unsupported concurrency")
		return
	}
	h.NLPPool.UpdateSettings(req.ModelID, req.Concurrency)
	c.JSON(http.StatusOK, gin.H{"model_id": req.ModelID, "concurrency": req.Concurrency})
}

// Analytics aggregates ticket/manager state for dashboards.
func (h *Handler) Analytics(c *gin.Context) {
	stats, err := h.Store.TicketStats(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "PERSIST_FAILURE", err.Error())
		return
	}
	workloads, err := h.Store.ManagerWorkloads(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "PERSIST_FAILURE", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket_stats": stats, "manager_workloads": workloads})
}

// Tickets lists enriched tickets with optional filters, through the same
// query as the Q&A tool surface's get_tickets.
func (h *Handler) Tickets(c *gin.Context) {
	q := db.TicketQuery{
		RequestType: c.Query("request_type"),
		Language:    c.Query("language"),
		Office:      c.Query("office"),
	}
	tickets, err := h.Store.ListTickets(c.Request.Context(), q)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "PERSIST_FAILURE", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}
