package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"kayak/internal/flights/service"
	apperrors "kayak/pkg/errors"
	httputil "kayak/pkg/http"
	"kayak/pkg/logger"
	"kayak/pkg/model"
)

// flightNumberSegment is the literal first segment of GET /flights/flight/:flightId.
const flightNumberSegment = "flight"

type FlightHandler struct {
	service service.FlightService
	log     *logger.Logger
}

func NewFlightHandler(service service.FlightService, log *logger.Logger) *FlightHandler {
	return &FlightHandler{
		service: service,
		log:     log,
	}
}

func (h *FlightHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/flights", h.Create)
	router.GET("/flights", h.Search)
	router.GET("/flights/:id", h.GetByID)
	router.GET("/flights/:id/:flightId", h.GetByFlightID)
	router.PUT("/flights/:id", h.Update)
	router.DELETE("/flights/:id", h.Delete)
	router.POST("/flights/:id/reviews", h.AddReview)
	router.PUT("/flights/:id/seats", h.ReserveSeats)
}

func (h *FlightHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *FlightHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var raw map[string]any
	if err := httputil.DecodeJSON(r, &raw); err != nil {
		h.writeError(w, "Create", err)
		return
	}
	if raw == nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Request body must be a JSON object"))
		return
	}

	f, err := h.service.Create(r.Context(), raw)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, "Flight created successfully", f); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *FlightHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	result, err := h.service.Search(r.Context(), r.URL.Query())
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	pagination := httputil.NewPagination(result.Page, result.Limit, result.Total)
	if err := httputil.WritePaginated(w, result.Flights, pagination); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Search", "operation", "WritePaginated", "error", err)
	}
}

func (h *FlightHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	f, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, f); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// GetByFlightID serves /flights/flight/:flightId. httprouter cannot register that
// static segment next to /flights/:id, so the two-segment wildcard route is used
// and any other first segment is a 404.
func (h *FlightHandler) GetByFlightID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if ps.ByName("id") != flightNumberSegment {
		h.writeError(w, "GetByFlightID", apperrors.NotFound("Route"))
		return
	}

	f, err := h.service.GetByFlightID(r.Context(), ps.ByName("flightId"))
	if err != nil {
		h.writeError(w, "GetByFlightID", err)
		return
	}

	if err := httputil.WriteSuccess(w, f); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByFlightID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *FlightHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var patch map[string]any
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		h.writeError(w, "Update", err)
		return
	}
	if patch == nil {
		h.writeError(w, "Update", apperrors.InvalidInput("Request body must be a JSON object"))
		return
	}

	f, err := h.service.Update(r.Context(), ps.ByName("id"), patch)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccessMessage(w, "Flight updated successfully", f); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccessMessage", "error", err)
	}
}

func (h *FlightHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	if err := httputil.WriteSuccessMessage(w, "Flight deleted successfully", nil); err != nil {
		h.log.Error("failed to write success response", "handler", "Delete", "operation", "WriteSuccessMessage", "error", err)
	}
}

func (h *FlightHandler) AddReview(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var review model.Review
	if err := httputil.DecodeJSON(r, &review); err != nil {
		h.writeError(w, "AddReview", err)
		return
	}

	added, err := h.service.AddReview(r.Context(), ps.ByName("id"), &review)
	if err != nil {
		h.writeError(w, "AddReview", err)
		return
	}

	if err := httputil.WriteSuccessMessage(w, "Review added successfully", added); err != nil {
		h.log.Error("failed to write success response", "handler", "AddReview", "operation", "WriteSuccessMessage", "error", err)
	}
}

func (h *FlightHandler) ReserveSeats(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.ReserveSeatsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "ReserveSeats", err)
		return
	}

	availability, err := h.service.ReserveSeats(r.Context(), ps.ByName("id"), req)
	if err != nil {
		h.writeError(w, "ReserveSeats", err)
		return
	}

	if err := httputil.WriteSuccessMessage(w, "Seats reserved successfully", availability); err != nil {
		h.log.Error("failed to write success response", "handler", "ReserveSeats", "operation", "WriteSuccessMessage", "error", err)
	}
}
