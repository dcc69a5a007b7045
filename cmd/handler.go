package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/furnbridge/orderdesk/internal/model"
	"github.com/furnbridge/orderdesk/internal/pipeline"
	"github.com/furnbridge/orderdesk/internal/store"
)

// messageProcessor is the slice of the pipeline the intake server needs.
type messageProcessor interface {
	Process(ctx context.Context, msg model.IngestedEmail) (*pipeline.Result, error)
}

// orderExporter writes the manufacturer XML files for a finished order.
type orderExporter interface {
	Export(order *model.Order) ([]string, error)
}

// serveDeps carries the collaborators of the intake HTTP server.
type serveDeps struct {
	proc     messageProcessor
	store    store.Store
	exporter orderExporter

	// baseCtx outlives individual requests; message processing continues
	// after the intake response is sent.
	baseCtx context.Context
}

// newServeHandler builds the intake HTTP API: message intake plus record
// retrieval over the processed order store.
func newServeHandler(deps serveDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/messages", deps.handleIntake)
	r.Get("/records", deps.handleListRecords)
	r.Get("/records/{messageID}", deps.handleGetRecord)

	return r
}

func (d serveDeps) handleIntake(w http.ResponseWriter, req *http.Request) {
	var msg model.IngestedEmail
	if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	// Process asynchronously; intake acknowledges receipt only.
	go func() {
		ctx := d.baseCtx
		result, err := d.proc.Process(ctx, msg)
		if err != nil {
			zap.L().Error("intake processing failed",
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
			return
		}
		if err := d.store.SaveRecord(ctx, result.Order); err != nil {
			zap.L().Error("intake record save failed",
				zap.String("message_id", msg.MessageID),
				zap.Error(err),
			)
			return
		}
		if d.exporter != nil {
			if _, err := d.exporter.Export(result.Order); err != nil {
				zap.L().Warn("intake export failed",
					zap.String("message_id", msg.MessageID),
					zap.Error(err),
				)
			}
		}
		zap.L().Info("intake processing complete",
			zap.String("message_id", msg.MessageID),
			zap.String("branch", result.Order.Branch),
			zap.String("status", string(result.Order.Status)),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"message_id": msg.MessageID,
	})
}

func (d serveDeps) handleGetRecord(w http.ResponseWriter, req *http.Request) {
	messageID := chi.URLParam(req, "messageID")

	order, err := d.store.GetRecord(req.Context(), messageID)
	if err != nil {
		zap.L().Error("record lookup failed", zap.String("message_id", messageID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "record lookup failed"})
		return
	}
	if order == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (d serveDeps) handleListRecords(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	filter := store.RecordFilter{
		Status: model.Status(q.Get("status")),
		Branch: q.Get("branch"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		filter.Offset = n
	}

	records, err := d.store.ListRecords(req.Context(), filter)
	if err != nil {
		zap.L().Error("record list failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "record list failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
