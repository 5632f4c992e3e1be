package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ticketing-engine/internal/models"
	"ticketing-engine/internal/services"
	"ticketing-engine/internal/utils"
)

type TicketHandler struct {
	ticketService *services.TicketService
}

func NewTicketHandler(ticketService *services.TicketService) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
	}
}

func (h *TicketHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	tickets := v1.Group("/tickets")
	{
		tickets.POST("/book", h.BookTickets)
		tickets.GET("/:id", h.GetTicket)
		tickets.POST("/scan", h.ScanTicket)
		tickets.POST("/manual-verify", h.VerifyTicket)
		tickets.POST("/bulk-check-in", h.BulkCheckIn)
	}

	events := v1.Group("/events")
	{
		events.GET("/:id/attendance", h.GetAttendance)
		events.GET("/:id/tickets", h.ListEventTickets)
		events.GET("/:id/payments", h.ListEventPayments)
	}
}

func (h *TicketHandler) BookTickets(c *gin.Context) {
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	tickets, err := h.ticketService.BookTickets(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Booking failed", err)
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Tickets booked", tickets))
}

func (h *TicketHandler) GetTicket(c *gin.Context) {
	id, ok := pathID(c, "Ticket ID")
	if !ok {
		return
	}

	ticket, err := h.ticketService.GetTicket(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to retrieve ticket", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Ticket retrieved", ticket))
}

func (h *TicketHandler) ScanTicket(c *gin.Context) {
	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	result, err := h.ticketService.ScanTicket(c.Request.Context(), req.QRCode, req.Gate)
	if err != nil {
		respondError(c, "Scan failed", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse(result.Message, result))
}

func (h *TicketHandler) VerifyTicket(c *gin.Context) {
	var req models.ManualVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	result, err := h.ticketService.VerifyTicketByNumber(c.Request.Context(), req.TicketNumber, req.EventID, req.Gate)
	if err != nil {
		respondError(c, "Verification failed", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse(result.Message, result))
}

func (h *TicketHandler) BulkCheckIn(c *gin.Context) {
	var req models.BulkCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	summary, err := h.ticketService.BulkCheckIn(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Bulk check-in failed", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Bulk check-in completed", summary))
}

func (h *TicketHandler) GetAttendance(c *gin.Context) {
	id, ok := pathID(c, "Event ID")
	if !ok {
		return
	}

	attendance, err := h.ticketService.EventAttendance(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to retrieve attendance", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Attendance retrieved", attendance))
}

func (h *TicketHandler) ListEventTickets(c *gin.Context) {
	id, ok := pathID(c, "Event ID")
	if !ok {
		return
	}

	tickets, err := h.ticketService.EventTickets(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to list tickets", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Tickets retrieved", tickets))
}

func (h *TicketHandler) ListEventPayments(c *gin.Context) {
	id, ok := pathID(c, "Event ID")
	if !ok {
		return
	}

	payments, err := h.ticketService.EventPayments(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to list payments", err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payments retrieved", payments))
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse(name+" must be a positive integer", c.Param("id")))
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrCapacityExceeded):
		status = http.StatusConflict
	case errors.Is(err, services.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	_ = c.Error(err)
	c.JSON(status, utils.ErrorResponse(message, err.Error()))
}
