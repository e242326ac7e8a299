// Package httpapi exposes the venue over HTTP: order entry commands are
// accepted and acknowledged asynchronously (results flow through the event
// stream), depth and stats are answered synchronously.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/xid"

	venue "github.com/cutamar/govenue"
	"github.com/cutamar/govenue/internal/storage"
	"github.com/cutamar/govenue/protocol"
)

// Server handles API requests against one venue.
type Server struct {
	venue    *venue.Venue
	trades   storage.Storage      // optional, nil disables /trades
	views    *venue.ViewPublisher // optional, nil disables /book
	validate *validator.Validate
}

// NewServer wires the handlers. trades and views may be nil when no archive
// or market data projection is configured.
func NewServer(v *venue.Venue, trades storage.Storage, views *venue.ViewPublisher) *Server {
	return &Server{
		venue:    v,
		trades:   trades,
		views:    views,
		validate: validator.New(),
	}
}

// Routes registers all endpoints on a mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/orders", s.handleSubmit)
	mux.HandleFunc("POST /api/v1/orders/cancel", s.handleCancel)
	mux.HandleFunc("POST /api/v1/orders/modify", s.handleModify)
	mux.HandleFunc("GET /api/v1/depth", s.handleDepth)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	if s.trades != nil {
		mux.HandleFunc("GET /api/v1/trades", s.handleTrades)
	}
	if s.views != nil {
		mux.HandleFunc("GET /api/v1/book", s.handleBook)
	}
}

type submitRequest struct {
	Instrument  string `json:"instrument" validate:"required"`
	Side        string `json:"side" validate:"required,oneof=buy sell"`
	Type        string `json:"type" validate:"required,oneof=limit market"`
	TimeInForce string `json:"time_in_force" validate:"omitempty,oneof=gtc ioc fok"`
	PostOnly    bool   `json:"post_only"`
	Price       string `json:"price"`
	Qty         string `json:"qty" validate:"required"`
	ClientTS    int64  `json:"client_ts"`
}

type cancelRequest struct {
	Instrument string `json:"instrument" validate:"required"`
	OrderID    uint64 `json:"order_id" validate:"required"`
	ClientTS   int64  `json:"client_ts"`
}

type modifyRequest struct {
	Instrument string `json:"instrument" validate:"required"`
	OrderID    uint64 `json:"order_id" validate:"required"`
	NewPrice   string `json:"new_price"`
	NewQty     string `json:"new_qty"`
	ClientTS   int64  `json:"client_ts"`
}

// decodeAndValidate reads the body into dst and runs struct validation.
// A false return means the error response was already written.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, requestID string, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, generalError(requestID, errors.New("empty body")))
		return false
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, generalError(requestID, err))
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		var validatorErrors validator.ValidationErrors
		if errors.As(err, &validatorErrors) {
			writeJSON(w, http.StatusBadRequest, validationError(requestID, validatorErrors))
		} else {
			writeJSON(w, http.StatusBadRequest, generalError(requestID, err))
		}
		return false
	}
	return true
}

// writeCommandError maps venue errors onto HTTP statuses.
func writeCommandError(w http.ResponseWriter, requestID string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, venue.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, venue.ErrInvalidParam):
		status = http.StatusBadRequest
	case errors.Is(err, venue.ErrShutdown):
		status = http.StatusServiceUnavailable
	case errors.Is(err, venue.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, generalError(requestID, err))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	requestID := xid.New().String()

	var req submitRequest
	if !s.decodeAndValidate(w, r, requestID, &req) {
		return
	}

	err := s.venue.Submit(r.Context(), req.Instrument, &protocol.SubmitPayload{
		Side:        sideFromString(req.Side),
		OrderType:   protocol.OrderType(req.Type),
		TimeInForce: protocol.TimeInForce(req.TimeInForce),
		PostOnly:    req.PostOnly,
		Price:       req.Price,
		Qty:         req.Qty,
		ClientTS:    req.ClientTS,
	})
	if err != nil {
		writeCommandError(w, requestID, err)
		return
	}

	slog.Info("order submitted", "request_id", requestID, "instrument", req.Instrument)
	writeJSON(w, http.StatusAccepted, Response{Status: StatusOK, RequestID: requestID})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	requestID := xid.New().String()

	var req cancelRequest
	if !s.decodeAndValidate(w, r, requestID, &req) {
		return
	}

	err := s.venue.Cancel(r.Context(), req.Instrument, &protocol.CancelPayload{
		OrderID:  req.OrderID,
		ClientTS: req.ClientTS,
	})
	if err != nil {
		writeCommandError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusAccepted, Response{Status: StatusOK, RequestID: requestID})
}

func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	requestID := xid.New().String()

	var req modifyRequest
	if !s.decodeAndValidate(w, r, requestID, &req) {
		return
	}

	err := s.venue.Modify(r.Context(), req.Instrument, &protocol.ModifyPayload{
		OrderID:  req.OrderID,
		NewPrice: req.NewPrice,
		NewQty:   req.NewQty,
		ClientTS: req.ClientTS,
	})
	if err != nil {
		writeCommandError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusAccepted, Response{Status: StatusOK, RequestID: requestID})
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	requestID := xid.New().String()

	instrument := r.URL.Query().Get("instrument")
	if instrument == "" {
		writeJSON(w, http.StatusBadRequest, generalError(requestID, errors.New("instrument is required")))
		return
	}

	limit := uint64(20)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			writeJSON(w, http.StatusBadRequest, generalError(requestID, errors.New("limit must be a positive integer")))
			return
		}
		limit = parsed
	}

	depth, err := s.venue.Depth(r.Context(), instrument, uint32(limit))
	if err != nil {
		writeCommandError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Status:    StatusOK,
		RequestID: requestID,
		Data:      depthResponse(depth),
	})
}

// handleBook serves depth from the event-sourced projection instead of the
// engine: it never touches the matching path.
func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	requestID := xid.New().String()

	instrument := r.URL.Query().Get("instrument")
	if instrument == "" {
		writeJSON(w, http.StatusBadRequest, generalError(requestID, errors.New("instrument is required")))
		return
	}

	view := s.views.View(instrument)
	if view == nil {
		writeCommandError(w, requestID, venue.ErrNotFound)
		return
	}

	limit := uint64(20)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			writeJSON(w, http.StatusBadRequest, generalError(requestID, errors.New("limit must be a positive integer")))
			return
		}
		limit = parsed
	}

	writeJSON(w, http.StatusOK, Response{
		Status:    StatusOK,
		RequestID: requestID,
		Data:      depthResponse(view.Depth(uint32(limit))),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	requestID := xid.New().String()

	instrument := r.URL.Query().Get("instrument")
	if instrument == "" {
		writeJSON(w, http.StatusBadRequest, generalError(requestID, errors.New("instrument is required")))
		return
	}

	stats, err := s.venue.Stats(r.Context(), instrument)
	if err != nil {
		writeCommandError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Status:    StatusOK,
		RequestID: requestID,
		Data: &protocol.GetStatsResponse{
			AskDepthCount: stats.AskDepthCount,
			AskOrderCount: stats.AskOrderCount,
			BidDepthCount: stats.BidDepthCount,
			BidOrderCount: stats.BidOrderCount,
		},
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	requestID := xid.New().String()

	instrument := r.URL.Query().Get("instrument")
	if instrument == "" {
		writeJSON(w, http.StatusBadRequest, generalError(requestID, errors.New("instrument is required")))
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, generalError(requestID, errors.New("limit must be a positive integer")))
			return
		}
		limit = parsed
	}

	trades, err := s.trades.TradesByInstrument(r.Context(), instrument, limit)
	if err != nil {
		writeCommandError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Status:    StatusOK,
		RequestID: requestID,
		Data:      trades,
	})
}

func sideFromString(s string) protocol.Side {
	if s == "sell" {
		return protocol.SideSell
	}
	return protocol.SideBuy
}

// depthResponse converts the engine's decimal depth to the wire shape with
// string-encoded numbers.
func depthResponse(depth *venue.Depth) *protocol.GetDepthResponse {
	resp := &protocol.GetDepthResponse{
		UpdateID: depth.UpdateID,
		Bids:     make([]*protocol.DepthItem, 0, len(depth.Bids)),
		Asks:     make([]*protocol.DepthItem, 0, len(depth.Asks)),
	}
	for _, item := range depth.Bids {
		resp.Bids = append(resp.Bids, &protocol.DepthItem{
			Price: item.Price.String(),
			Size:  item.Qty.String(),
			Count: item.Count,
		})
	}
	for _, item := range depth.Asks {
		resp.Asks = append(resp.Asks, &protocol.DepthItem{
			Price: item.Price.String(),
			Size:  item.Qty.String(),
			Count: item.Count,
		})
	}
	return resp
}
