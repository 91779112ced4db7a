package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/haatos/fisherman/internal"
	"github.com/haatos/fisherman/internal/security"
	"github.com/haatos/fisherman/internal/store"
	"github.com/haatos/fisherman/internal/webhook"
)

type Dispatcher interface {
	Enqueue(*webhook.Delivery) error
	Len() int
}

type EventLister interface {
	ListEvents(context.Context, string, int64) ([]store.Event, error)
}

func SetupWebhookRoutes(
	e *echo.Echo,
	config *internal.Configuration,
	dispatcher Dispatcher,
	events EventLister,
	log *zap.SugaredLogger,
) {
	h := NewWebhookHandler(config, dispatcher, events, log)
	e.POST("/", h.PostWebhook)
	e.GET("/events", h.GetEvents)
	e.GET("/health", h.GetHealth)
}

type WebhookHandler struct {
	config     *internal.Configuration
	dispatcher Dispatcher
	events     EventLister
	log        *zap.SugaredLogger
}

func NewWebhookHandler(
	config *internal.Configuration,
	dispatcher Dispatcher,
	events EventLister,
	log *zap.SugaredLogger,
) *WebhookHandler {
	return &WebhookHandler{
		config:     config,
		dispatcher: dispatcher,
		events:     events,
		log:        log,
	}
}

// PostWebhook authenticates and decodes a delivery and queues it. The
// deployment outcome is never part of the response.
func (h *WebhookHandler) PostWebhook(c echo.Context) error {
	req := c.Request()
	payload, err := io.ReadAll(req.Body)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read request body").WithInternal(err)
	}

	event, err := webhook.Decode(req.Header.Get(internal.EventTypeHeader), payload)
	if err != nil {
		return err
	}

	secret := h.config.ResolveSecret(event.FullName())
	signature := security.ParseSignatureHeader(req.Header.Get(internal.SignatureHeader))
	if err := security.ValidateSignature(payload, secret, signature); err != nil {
		return err
	}

	d := &webhook.Delivery{
		ID:         deliveryID(req),
		Event:      event,
		ReceivedOn: time.Now().UTC(),
	}
	if err := h.dispatcher.Enqueue(d); err != nil {
		return err
	}

	h.log.Infow("accepted delivery",
		"delivery", d.ID,
		"event", event.Kind(),
		"repository", event.FullName(),
	)
	return c.JSON(http.StatusAccepted, AcceptedResponse{
		DeliveryID: d.ID,
		Event:      string(event.Kind()),
		Repository: event.FullName(),
		Message:    acknowledgement(event),
	})
}

func (h *WebhookHandler) GetEvents(c echo.Context) error {
	params := new(ListEventsParams)
	if err := c.Bind(params); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters").WithInternal(err)
	}
	switch {
	case params.Limit <= 0:
		params.Limit = internal.DefaultEventLimit
	case params.Limit > internal.MaxEventLimit:
		params.Limit = internal.MaxEventLimit
	}

	events, err := h.events.ListEvents(c.Request().Context(), params.Repository, params.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "unable to list events").WithInternal(err)
	}
	return c.JSON(http.StatusOK, events)
}

func (h *WebhookHandler) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		QueueLength: h.dispatcher.Len(),
	})
}

func deliveryID(req *http.Request) string {
	if id := req.Header.Get(internal.DeliveryIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

func acknowledgement(event webhook.Event) string {
	switch e := event.(type) {
	case *webhook.Ping:
		return fmt.Sprintf("pong from %s for webhook %s", e.FullName(), e.Hook.Config.URL)
	case *webhook.Push:
		return fmt.Sprintf("queued push to %s of %s", e.Ref, e.FullName())
	}
	return "queued"
}
