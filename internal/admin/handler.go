package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/rtdickson/event-site/internal/auth"
	"github.com/rtdickson/event-site/internal/roster"
	"github.com/rtdickson/event-site/internal/store"
)

// Store is the slice of the data layer the admin panel needs.
type Store interface {
	store.EventStore
	store.RSVPStore
	store.InviteStore
	store.ContactStore
	store.RequestStore
}

// Handler serves the admin API.
type Handler struct {
	store  Store
	auth   *auth.Service
	roster *roster.Presenter
}

func NewHandler(s Store, a *auth.Service, p *roster.Presenter) *Handler {
	return &Handler{store: s, auth: a, roster: p}
}

// Error is the uniform error body.
type Error struct {
	Message string `json:"message"`
}

// RegisterHandlers wires the admin routes. Everything except the health
// check requires an admin session.
func RegisterHandlers(r *gin.Engine, h *Handler) {
	r.GET("/health", h.GetHealth)

	g := r.Group("/admin", h.auth.Middleware(auth.RoleAdmin))
	g.GET("/events", h.ListEvents)
	g.POST("/events", h.CreateEvent)
	g.GET("/events/:id", h.GetEvent)
	g.PUT("/events/:id", h.UpdateEvent)
	g.DELETE("/events/:id", h.DeleteEvent)

	g.GET("/events/:id/rsvps", h.ListRSVPs)
	g.DELETE("/events/:id/rsvps", h.DeleteAllRSVPs)
	g.DELETE("/events/:id/rsvps/:rsvpID", h.DeleteRSVP)
	g.GET("/events/:id/invites", h.ListInvites)
	g.GET("/events/:id/roster", h.GetRoster)

	g.GET("/contacts", h.ListContacts)
	g.POST("/contacts", h.CreateContact)
	g.DELETE("/contacts/:id", h.DeleteContact)

	g.GET("/guest-list-requests", h.ListRequests)
	g.DELETE("/guest-list-requests/:id", h.DeleteRequest)
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.store.ListEvents(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to list events")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	c.JSON(http.StatusOK, events)
}

type eventRequest struct {
	Name        string   `json:"name"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Menu        []string `json:"menu"`
	WhatToBring string   `json:"whatToBring"`
	Schedule    []string `json:"schedule"`
	IsActive    bool     `json:"isActive"`
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var body eventRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		c.JSON(http.StatusBadRequest, Error{Message: "event name is required"})
		return
	}

	collection := store.CollectionNameFor(body.Name)
	if store.DegenerateCollectionName(collection) {
		c.JSON(http.StatusBadRequest, Error{Message: "event name must contain letters or digits"})
		return
	}

	ctx := c.Request.Context()
	if body.IsActive {
		if err := h.store.DeactivateAll(ctx); err != nil {
			log.WithError(err).Error("failed to deactivate events")
			c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
			return
		}
	}

	ev := &store.Event{
		Name:           body.Name,
		Date:           body.Date,
		Description:    body.Description,
		Menu:           body.Menu,
		WhatToBring:    body.WhatToBring,
		Schedule:       body.Schedule,
		CollectionName: collection,
		IsActive:       body.IsActive,
	}
	if err := h.store.CreateEvent(ctx, ev); err != nil {
		log.WithError(err).Error("failed to create event")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}

	log.WithField("event", ev.Name).WithField("collection", ev.CollectionName).Info("event created")
	c.JSON(http.StatusCreated, ev)
}

func (h *Handler) GetEvent(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}

	var body eventRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		c.JSON(http.StatusBadRequest, Error{Message: "event name is required"})
		return
	}

	ctx := c.Request.Context()
	if body.IsActive && !ev.IsActive {
		if err := h.store.DeactivateAll(ctx); err != nil {
			log.WithError(err).Error("failed to deactivate events")
			c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
			return
		}
	}

	// CollectionName never changes after creation, even on rename: the
	// RSVP collection stays linked to the event it was created for.
	ev.Name = body.Name
	ev.Date = body.Date
	ev.Description = body.Description
	ev.Menu = body.Menu
	ev.WhatToBring = body.WhatToBring
	ev.Schedule = body.Schedule
	ev.IsActive = body.IsActive

	if err := h.store.UpdateEvent(ctx, ev); err != nil {
		log.WithError(err).Error("failed to update event")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, ev)
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}

	if err := h.store.DeleteEvent(c.Request.Context(), ev.ID); err != nil {
		log.WithError(err).Error("failed to delete event")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}

	log.WithField("event", ev.Name).Info("event deleted")
	c.Status(http.StatusNoContent)
}

type rsvpRow struct {
	store.RSVP
	DisplayName string `json:"displayName"`
}

func (h *Handler) ListRSVPs(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	rsvps, err := h.store.ListRSVPs(ctx, ev.CollectionName)
	if err != nil {
		log.WithError(err).Error("failed to list rsvps")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}

	contacts, err := h.store.ListContacts(ctx)
	if err != nil {
		log.WithError(err).Error("failed to list contacts")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}

	fill := roster.NameBackfill(contacts)
	rows := make([]rsvpRow, len(rsvps))
	for i, r := range rsvps {
		rows[i] = rsvpRow{RSVP: r, DisplayName: fill(r)}
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) DeleteRSVP(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}

	if err := h.store.DeleteRSVP(c.Request.Context(), ev.CollectionName, c.Param("rsvpID")); err != nil {
		log.WithError(err).Error("failed to delete rsvp")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteAllRSVPs(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}

	if err := h.store.DeleteAllRSVPs(c.Request.Context(), ev.CollectionName); err != nil {
		log.WithError(err).Error("failed to delete rsvps")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}

	log.WithField("event", ev.Name).Info("all rsvps deleted")
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListInvites(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, Error{Message: "since must be RFC 3339"})
			return
		}
		since = parsed
	}

	invites, err := h.store.ListInvitesByEvent(c.Request.Context(), ev.Name, since)
	if err != nil {
		log.WithError(err).Error("failed to list invites")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	if invites == nil {
		invites = []store.Invite{}
	}
	c.JSON(http.StatusOK, invites)
}

// GetRoster returns every contact annotated with their resolved status for
// the event, or with ?mode=attendees just the Yes/Maybe respondents.
func (h *Handler) GetRoster(c *gin.Context) {
	ev, ok := h.loadEvent(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if c.Query("mode") == "attendees" {
		rows, err := h.roster.Attendees(ctx, *ev)
		if err != nil {
			log.WithError(err).Error("failed to build attendee list")
			c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
			return
		}
		c.JSON(http.StatusOK, rows)
		return
	}

	h.roster.Select(ev.ID)
	rows, err := h.roster.Populate(ctx, *ev)
	switch {
	case errors.Is(err, roster.ErrBusy):
		c.JSON(http.StatusConflict, Error{Message: "a roster is already being built, try again shortly"})
		return
	case errors.Is(err, roster.ErrStale):
		c.JSON(http.StatusConflict, Error{Message: "event selection changed while building the roster"})
		return
	case err != nil:
		log.WithError(err).Error("failed to build roster")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) ListContacts(c *gin.Context) {
	contacts, err := h.store.ListContacts(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to list contacts")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	if contacts == nil {
		contacts = []store.Contact{}
	}
	c.JSON(http.StatusOK, contacts)
}

type contactRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (h *Handler) CreateContact(c *gin.Context) {
	var body contactRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Phone == "" {
		c.JSON(http.StatusBadRequest, Error{Message: "phone is required"})
		return
	}

	contact := &store.Contact{Name: body.Name, Phone: body.Phone}
	if err := h.store.AddContact(c.Request.Context(), contact); err != nil {
		log.WithError(err).Error("failed to create contact")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *Handler) DeleteContact(c *gin.Context) {
	if err := h.store.DeleteContact(c.Request.Context(), c.Param("id")); err != nil {
		log.WithError(err).Error("failed to delete contact")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListRequests(c *gin.Context) {
	reqs, err := h.store.ListRequests(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to list guest list requests")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	if reqs == nil {
		reqs = []store.GuestListRequest{}
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *Handler) DeleteRequest(c *gin.Context) {
	if err := h.store.DeleteRequest(c.Request.Context(), c.Param("id")); err != nil {
		log.WithError(err).Error("failed to delete guest list request")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// loadEvent resolves the :id path parameter. On failure it writes the
// response itself and returns ok=false.
func (h *Handler) loadEvent(c *gin.Context) (*store.Event, bool) {
	ev, err := h.store.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.WithError(err).Error("failed to get event")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return nil, false
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, Error{Message: "event not found"})
		return nil, false
	}
	return ev, true
}
