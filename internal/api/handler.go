package api

import (
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/rtdickson/event-site/internal/auth"
	"github.com/rtdickson/event-site/internal/gallery"
	"github.com/rtdickson/event-site/internal/phone"
	"github.com/rtdickson/event-site/internal/sms"
	"github.com/rtdickson/event-site/internal/store"
	"github.com/rtdickson/event-site/internal/weather"
)

// Store is the slice of the data layer the guest API needs.
type Store interface {
	store.EventStore
	store.RSVPStore
	store.InviteStore
	store.ContactStore
	store.RequestStore
}

// Handler serves the guest-facing API.
type Handler struct {
	store    Store
	auth     *auth.Service
	gateway  sms.Gateway
	forecast *weather.Client
	photos   gallery.Store
	siteName string
	siteURL  string
}

// Deps carries the handler's collaborators.
type Deps struct {
	Store    Store
	Auth     *auth.Service
	Gateway  sms.Gateway
	Forecast *weather.Client
	Photos   gallery.Store
	SiteName string
	SiteURL  string
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		store:    d.Store,
		auth:     d.Auth,
		gateway:  d.Gateway,
		forecast: d.Forecast,
		photos:   d.Photos,
		siteName: d.SiteName,
		siteURL:  d.SiteURL,
	}
}

// Error is the uniform error body.
type Error struct {
	Message string `json:"message"`
}

// RegisterHandlers wires the guest routes. Session-protected routes share
// the guest middleware; the invite endpoint requires an admin session since
// it sends texts on the site's behalf.
func RegisterHandlers(r *gin.Engine, h *Handler) {
	r.GET("/health", h.GetHealth)
	r.POST("/api/login", h.PostLogin)
	r.POST("/webhook/sms", h.PostSMSWebhook)

	guest := h.auth.Middleware(auth.RoleGuest)
	r.GET("/api/event", guest, h.GetActiveEvent)
	r.GET("/api/events/upcoming", guest, h.GetUpcomingEvents)
	r.POST("/api/rsvps", guest, h.PostRSVP)
	r.POST("/api/guest-list-requests", guest, h.PostGuestListRequest)
	r.GET("/api/weather", guest, h.GetWeather)
	r.GET("/api/gallery", guest, h.ListPhotos)
	r.POST("/api/gallery", guest, h.UploadPhoto)
	r.GET("/api/gallery/:name", guest, h.GetPhoto)

	r.POST("/api/invites", h.auth.Middleware(auth.RoleAdmin), h.PostInvites)
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type loginRequest struct {
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) PostLogin(c *gin.Context) {
	var body loginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Error{Message: "invalid request body"})
		return
	}

	role := auth.Role(body.Role)
	if role == "" {
		role = auth.RoleGuest
	}

	token, expiresAt, err := h.auth.Login(body.Password, role)
	if err != nil {
		log.WithField("role", string(role)).Warn("failed login attempt")
		c.JSON(http.StatusUnauthorized, Error{Message: "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt,
	})
}

func (h *Handler) GetActiveEvent(c *gin.Context) {
	ev, err := h.store.ActiveEvent(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to load active event")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, Error{Message: "no active event"})
		return
	}

	c.JSON(http.StatusOK, ev)
}

// GetUpcomingEvents lists every event that is not the active one, newest
// first. Dates are free text ("Date TBD" is a valid date), so they play no
// part in membership or ordering.
func (h *Handler) GetUpcomingEvents(c *gin.Context) {
	events, err := h.store.ListEvents(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to list events")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}

	upcoming := make([]store.Event, 0, len(events))
	for _, ev := range events {
		if ev.IsActive {
			continue
		}
		upcoming = append(upcoming, ev)
	}
	c.JSON(http.StatusOK, upcoming)
}

type rsvpRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Attending string `json:"attending"`
	Guests    int    `json:"guests"`
	Notes     string `json:"notes"`
}

func (h *Handler) PostRSVP(c *gin.Context) {
	var body rsvpRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Error{Message: "invalid request body"})
		return
	}
	if !store.ValidAttending(body.Attending) {
		c.JSON(http.StatusBadRequest, Error{Message: "attending must be Yes, No or Maybe"})
		return
	}
	if body.Guests < 0 {
		body.Guests = 0
	}

	ev, err := h.store.ActiveEvent(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to load active event")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, Error{Message: "no active event"})
		return
	}

	r := &store.RSVP{
		Name:      body.Name,
		Phone:     body.Phone,
		Attending: body.Attending,
		Guests:    body.Guests,
		Notes:     body.Notes,
		Timestamp: time.Now(),
	}
	if err := h.store.AddRSVP(c.Request.Context(), ev.CollectionName, r); err != nil {
		log.WithError(err).Error("failed to store rsvp")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}

	log.WithField("event", ev.Name).WithField("attending", r.Attending).Info("rsvp recorded")
	c.JSON(http.StatusCreated, r)
}

type guestListRequest struct {
	Phone string `json:"phone"`
}

func (h *Handler) PostGuestListRequest(c *gin.Context) {
	var body guestListRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Phone == "" {
		c.JSON(http.StatusBadRequest, Error{Message: "phone is required"})
		return
	}

	req := &store.GuestListRequest{
		Phone:     body.Phone,
		Timestamp: time.Now(),
	}
	if err := h.store.AddRequest(c.Request.Context(), req); err != nil {
		log.WithError(err).Error("failed to store guest list request")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": req.ID})
}

func (h *Handler) GetWeather(c *gin.Context) {
	ev, err := h.store.ActiveEvent(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("failed to load active event")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, Error{Message: "no active event"})
		return
	}

	fc, err := h.forecast.ForEventDate(c.Request.Context(), ev.Date)
	if err != nil {
		log.WithError(err).Warn("forecast lookup failed")
		c.JSON(http.StatusInternalServerError, Error{Message: "forecast unavailable"})
		return
	}
	if fc == nil {
		c.JSON(http.StatusNotFound, Error{Message: "no forecast available for the event date"})
		return
	}

	c.JSON(http.StatusOK, fc)
}

func (h *Handler) ListPhotos(c *gin.Context) {
	names, err := h.photos.List()
	if err != nil {
		log.WithError(err).Error("failed to list photos")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, names)
}

func (h *Handler) UploadPhoto(c *gin.Context) {
	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, Error{Message: "photo file is required"})
		return
	}
	defer file.Close()

	if header.Size > gallery.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, Error{Message: "photo exceeds the upload limit"})
		return
	}

	name, err := h.photos.Save(header.Filename, file)
	if errors.Is(err, gallery.ErrTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, Error{Message: "photo exceeds the upload limit"})
		return
	}
	if err != nil {
		log.WithError(err).Error("failed to save photo")
		c.JSON(http.StatusInternalServerError, Error{Message: "internal error"})
		return
	}

	log.WithField("name", name).Info("photo uploaded")
	c.JSON(http.StatusCreated, gin.H{"name": name})
}

func (h *Handler) GetPhoto(c *gin.Context) {
	name := c.Param("name")
	rc, err := h.photos.Open(name)
	if err != nil {
		c.JSON(http.StatusNotFound, Error{Message: "photo not found"})
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Header("Content-Type", ct)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		log.WithError(err).WithField("name", name).Warn("photo stream interrupted")
	}
}

type inviteRequest struct {
	EventName    string   `json:"eventName"`
	PhoneNumbers []string `json:"phoneNumbers"`
	Message      string   `json:"message"`
}

func inviteError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"success": false, "error": msg})
}

func (h *Handler) PostInvites(c *gin.Context) {
	var body inviteRequest
	if err := c.ShouldBindJSON(&body); err != nil || len(body.PhoneNumbers) == 0 {
		inviteError(c, http.StatusBadRequest, "phoneNumbers is required")
		return
	}

	ctx := c.Request.Context()
	eventName := body.EventName
	if eventName == "" {
		ev, err := h.store.ActiveEvent(ctx)
		if err != nil {
			log.WithError(err).Error("failed to load active event")
			inviteError(c, http.StatusInternalServerError, "internal error")
			return
		}
		if ev == nil {
			inviteError(c, http.StatusNotFound, "no active event")
			return
		}
		eventName = ev.Name
	}

	message := body.Message
	if message == "" {
		message = fmt.Sprintf("You're invited to %s! Details and RSVP at %s", eventName, h.siteURL)
	}

	// The batch stops at the first failure so a bad number or provider
	// outage doesn't silently skip part of the list. Already-sent texts
	// are not rolled back.
	sent := 0
	for _, to := range body.PhoneNumbers {
		if !sms.ValidOutbound(to) {
			inviteError(c, http.StatusBadRequest, fmt.Sprintf("invalid phone number %q", to))
			return
		}

		if err := h.ensureContact(c, to); err != nil {
			log.WithError(err).Error("failed to record contact")
			inviteError(c, http.StatusInternalServerError, "internal error")
			return
		}

		if err := h.gateway.Send(ctx, to, message); err != nil {
			log.WithError(err).WithField("to", to).Error("invite send failed")
			inviteError(c, http.StatusBadGateway, fmt.Sprintf("send to %s failed after %d sent", to, sent))
			return
		}

		inv := &store.Invite{
			Phone:     to,
			EventName: eventName,
			Message:   message,
			Timestamp: time.Now(),
			Method:    "sms",
		}
		if err := h.store.LogInvite(ctx, inv); err != nil {
			log.WithError(err).WithField("to", to).Error("failed to log invite")
			inviteError(c, http.StatusInternalServerError, "internal error")
			return
		}
		sent++
	}

	log.WithField("event", eventName).WithField("sent", sent).Info("invites sent")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ensureContact records an invited number on the contact list when it isn't
// already there, so the roster shows everyone we texted.
func (h *Handler) ensureContact(c *gin.Context, phoneNumber string) error {
	ctx := c.Request.Context()
	existing, err := h.store.FindContactByPhone(ctx, phoneNumber)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return h.store.AddContact(ctx, &store.Contact{
		Name:      "Unknown",
		Phone:     phoneNumber,
		CreatedAt: time.Now(),
	})
}

func (h *Handler) PostSMSWebhook(c *gin.Context) {
	from := c.PostForm("From")
	bodyText := c.PostForm("Body")
	if from == "" {
		c.Data(http.StatusOK, "text/xml", []byte(twiml("")))
		return
	}

	logger := log.WithField("from", from)
	ctx := c.Request.Context()

	ev, err := h.store.ActiveEvent(ctx)
	if err != nil {
		logger.WithError(err).Error("failed to load active event")
		c.Data(http.StatusOK, "text/xml", []byte(twiml("Sorry, something went wrong. Please try again later.")))
		return
	}
	if ev == nil {
		c.Data(http.StatusOK, "text/xml", []byte(twiml("There is no event taking RSVPs right now.")))
		return
	}

	attending, guests, ok := sms.ParseReply(bodyText)
	if !ok {
		c.Data(http.StatusOK, "text/xml", []byte(twiml("Reply YES (optionally with a guest count, like \"YES 2\"), NO, or MAYBE.")))
		return
	}

	r := &store.RSVP{
		Name:      h.contactName(c, from),
		Phone:     from,
		Attending: attending,
		Guests:    guests,
		Timestamp: time.Now(),
	}
	if err := h.store.AddRSVP(ctx, ev.CollectionName, r); err != nil {
		logger.WithError(err).Error("failed to store sms rsvp")
		c.Data(http.StatusOK, "text/xml", []byte(twiml("Sorry, something went wrong. Please try again later.")))
		return
	}

	logger.WithField("attending", attending).Info("sms rsvp recorded")

	confirmation := fmt.Sprintf("Thanks! We recorded your RSVP (%s) for %s.", attending, ev.Name)
	if attending != store.AttendingNo && guests > 0 {
		confirmation = fmt.Sprintf("Thanks! We recorded your RSVP (%s, +%d guests) for %s.", attending, guests, ev.Name)
	}
	c.Data(http.StatusOK, "text/xml", []byte(twiml(confirmation)))
}

// contactName finds the sender on the contact list, matching exactly first
// and then by normalized number. SMS senders we don't recognize get a
// placeholder name an admin can fix later.
func (h *Handler) contactName(c *gin.Context, from string) string {
	ctx := c.Request.Context()

	if contact, err := h.store.FindContactByPhone(ctx, from); err == nil && contact != nil && contact.Name != "" {
		return contact.Name
	}

	if norm := phone.Normalize(from); norm != "" {
		contacts, err := h.store.ListContacts(ctx)
		if err == nil {
			for _, contact := range contacts {
				if contact.Name != "" && phone.Normalize(contact.Phone) == norm {
					return contact.Name
				}
			}
		}
	}

	return "Unknown (SMS)"
}

func twiml(message string) string {
	if message == "" {
		return "<Response></Response>"
	}
	return fmt.Sprintf("<Response><Message>%s</Message></Response>", html.EscapeString(message))
}
