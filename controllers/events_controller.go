package controllers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/princinho/eventhub/apperrors"
	"github.com/princinho/eventhub/auth"
	"github.com/princinho/eventhub/dto"
	"github.com/princinho/eventhub/models"
	"github.com/princinho/eventhub/repository"
	"github.com/princinho/eventhub/storage"
	"github.com/princinho/eventhub/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 10
	maxPageSize     = 20
)

type EventController struct {
	*Deps
}

func NewEventController(d *Deps) *EventController {
	return &EventController{Deps: d}
}

// POST /api/events (multipart: data + banner)
func (ec *EventController) CreateEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, err := currentIdentity(c)
		if err != nil {
			fail(c, err)
			return
		}
		if !id.IsCreator() {
			fail(c, apperrors.New(apperrors.Unauthorized, "only creators can create events"))
			return
		}

		jsonData := c.PostForm("data")
		if jsonData == "" {
			fail(c, apperrors.Field("data", "data is a required field"))
			return
		}
		var body dto.CreateEventDTO
		if err := json.Unmarshal([]byte(jsonData), &body); err != nil {
			fail(c, apperrors.Wrap(apperrors.BadRequest, "invalid data json", err))
			return
		}
		if err := validateStruct(&body); err != nil {
			fail(c, err)
			return
		}
		if !body.IsFree && body.Price == nil {
			fail(c, apperrors.Field("price", "price is required for paid events"))
			return
		}

		fh, err := c.FormFile("banner")
		if err != nil {
			fail(c, apperrors.Field("banner", "banner is a required field"))
			return
		}
		obj, err := storage.UploadBanner(ctx, ec.Uploader, ec.Files, id.UserID.Hex(), fh)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidFile) {
				ec.countUpload("rejected")
				fail(c, apperrors.Field("banner", err.Error()))
				return
			}
			ec.countUpload("failed")
			fail(c, apperrors.InternalWrap(err))
			return
		}
		ec.countUpload("ok")

		event := &models.Event{
			Name:           strings.TrimSpace(body.Name),
			Banner:         obj.URL,
			BannerObject:   obj.Key,
			Creator:        id.UserID,
			Administrators: []bson.ObjectID{},
			Category:       strings.TrimSpace(body.Category),
			Tags:           utils.NormalizeTags(body.Tags),
			Date:           body.Date.UTC(),
			Place:          strings.TrimSpace(body.Place),
			Description:    body.Description,
			Applicants:     []bson.ObjectID{},
			Limit:          body.Limit,
			IsPublished:    body.IsPublished,
			IsFree:         body.IsFree,
		}
		if !body.IsFree {
			event.Price = body.Price
		}

		created, err := ec.Events.Create(ctx, event)
		if err != nil {
			// the banner would be orphaned otherwise
			if delErr := ec.Uploader.Delete(ctx, obj.Key); delErr != nil {
				ec.Log.Warn("failed to delete orphaned banner", zap.String("key", obj.Key), zap.Error(delErr))
			}
			fail(c, apperrors.InternalWrap(err))
			return
		}

		detail, err := ec.detail(c, created, id.UserID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, detail)
	}
}

// GET /api/events
func (ec *EventController) ListEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		page := utils.ParseIntDefault(c.Query("page"), 1)
		limit := utils.ParseIntDefault(c.Query("limit"), defaultPageSize)
		if page < 1 {
			page = 1
		}
		if limit < 1 {
			limit = defaultPageSize
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
		// keeps (page-1)*limit within int
		if page > math.MaxInt/maxPageSize {
			fail(c, apperrors.Field("page", "page is out of range"))
			return
		}

		filter, err := parseEventFilter(c)
		if err != nil {
			fail(c, err)
			return
		}

		skip := int64((page - 1) * limit)
		events, total, err := ec.Events.List(c.Request.Context(), filter, skip, int64(limit))
		if err != nil {
			fail(c, apperrors.InternalWrap(err))
			return
		}

		result := make([]dto.EventSummary, 0, len(events))
		for i := range events {
			result = append(result, dto.NewEventSummary(&events[i]))
		}

		resp := dto.EventPage{Count: total, Result: result}
		if skip+int64(len(events)) < total {
			next := nextPageURL(c, page+1, limit)
			resp.Next = &next
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GET /api/events/:eventId
func (ec *EventController) GetEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := currentIdentity(c)
		if err != nil {
			fail(c, err)
			return
		}
		event, err := ec.visibleEvent(c, id)
		if err != nil {
			fail(c, err)
			return
		}
		detail, err := ec.detail(c, event, id.UserID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

// POST /api/events/:eventId/administrators
func (ec *EventController) AddAdministrators() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, event, err := ec.managedEvent(c)
		if err != nil {
			fail(c, err)
			return
		}

		var body dto.AddAdministratorsDTO
		if err := bindJSON(c, &body); err != nil {
			fail(c, err)
			return
		}
		adminIDs, err := utils.StringsToObjectIDs(body.Administrators)
		if err != nil {
			fail(c, apperrors.Field("administrators", "administrators must contain valid ids"))
			return
		}
		adminIDs = uniqueIDs(adminIDs)
		for _, adminID := range adminIDs {
			if adminID == event.Creator {
				fail(c, apperrors.Field("administrators", "the creator cannot be added as an administrator"))
				return
			}
		}

		found, err := ec.Users.CountByIDs(ctx, adminIDs)
		if err != nil {
			fail(c, apperrors.InternalWrap(err))
			return
		}
		if found != int64(len(adminIDs)) {
			fail(c, apperrors.Field("administrators", "one or more users do not exist"))
			return
		}

		updated, err := ec.Events.AddAdministrators(ctx, event.ID, adminIDs)
		if err != nil {
			fail(c, storeError(err, "event"))
			return
		}
		detail, err := ec.detail(c, updated, id.UserID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

// DELETE /api/events/:eventId/administrators/:adminId
func (ec *EventController) RemoveAdministrator() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, event, err := ec.managedEvent(c)
		if err != nil {
			fail(c, err)
			return
		}
		adminID, err := parseObjectID(c.Param("adminId"), "administrator")
		if err != nil {
			fail(c, err)
			return
		}
		if !slices.Contains(event.Administrators, adminID) {
			fail(c, apperrors.NotFoundf("administrator"))
			return
		}

		updated, err := ec.Events.RemoveAdministrator(c.Request.Context(), event.ID, adminID)
		if err != nil {
			fail(c, storeError(err, "event"))
			return
		}
		detail, err := ec.detail(c, updated, id.UserID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

// POST /api/events/:eventId/subscribe
func (ec *EventController) Subscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, err := currentIdentity(c)
		if err != nil {
			fail(c, err)
			return
		}
		event, err := ec.visibleEvent(c, id)
		if err != nil {
			fail(c, err)
			return
		}

		switch {
		case !event.IsPublished:
			fail(c, apperrors.BadRequestf("event is not published"))
			return
		case event.HasApplicant(id.UserID):
			fail(c, apperrors.BadRequestf("already subscribed to this event"))
			return
		case event.Full():
			fail(c, apperrors.BadRequestf("event is full"))
			return
		}

		updated, err := ec.Events.AddApplicant(ctx, event.ID, id.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// lost a race for the last seat
				fail(c, apperrors.Wrap(apperrors.Conflict, "event is full", err))
				return
			}
			fail(c, apperrors.InternalWrap(err))
			return
		}
		if err := ec.Users.AddSubscription(ctx, id.UserID, event.ID); err != nil {
			fail(c, storeError(err, "user"))
			return
		}

		detail, err := ec.detail(c, updated, id.UserID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

// POST /api/events/:eventId/unsubscribe
func (ec *EventController) Unsubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, err := currentIdentity(c)
		if err != nil {
			fail(c, err)
			return
		}
		event, err := ec.visibleEvent(c, id)
		if err != nil {
			fail(c, err)
			return
		}
		if !event.HasApplicant(id.UserID) {
			fail(c, apperrors.BadRequestf("not subscribed to this event"))
			return
		}

		updated, err := ec.Events.RemoveApplicant(ctx, event.ID, id.UserID)
		if err != nil {
			fail(c, storeError(err, "event"))
			return
		}
		if err := ec.Users.RemoveSubscription(ctx, id.UserID, event.ID); err != nil {
			fail(c, storeError(err, "user"))
			return
		}

		detail, err := ec.detail(c, updated, id.UserID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

// visibleEvent loads :eventId. Unpublished events only exist for the people
// managing them.
func (ec *EventController) visibleEvent(c *gin.Context, id auth.Identity) (*models.Event, error) {
	eventID, err := parseObjectID(c.Param("eventId"), "event")
	if err != nil {
		return nil, err
	}
	event, err := ec.Events.FindByID(c.Request.Context(), eventID)
	if err != nil {
		return nil, storeError(err, "event")
	}
	if !event.IsPublished && !event.CanManage(id.UserID) {
		return nil, apperrors.NotFoundf("event")
	}
	return event, nil
}

func (ec *EventController) managedEvent(c *gin.Context) (auth.Identity, *models.Event, error) {
	id, err := currentIdentity(c)
	if err != nil {
		return id, nil, err
	}
	event, err := ec.visibleEvent(c, id)
	if err != nil {
		return id, nil, err
	}
	if !event.CanManage(id.UserID) {
		return id, nil, apperrors.New(apperrors.Unauthorized, "you are not allowed to manage this event")
	}
	return id, event, nil
}

// detail populates creator and administrators. Users that no longer exist
// are skipped.
func (ec *EventController) detail(c *gin.Context, e *models.Event, viewer bson.ObjectID) (*dto.EventDetail, error) {
	ctx := c.Request.Context()
	detail := &dto.EventDetail{
		EventSummary:   dto.NewEventSummary(e),
		Description:    e.Description,
		Administrators: make([]dto.Person, 0, len(e.Administrators)),
		IsPublished:    e.IsPublished,
		IsSubscribed:   e.HasApplicant(viewer),
	}

	creator, err := ec.Users.FindByID(ctx, e.Creator)
	switch {
	case err == nil:
		p := dto.NewPerson(creator)
		detail.Creator = &p
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.InternalWrap(err)
	}

	for _, adminID := range e.Administrators {
		admin, err := ec.Users.FindByID(ctx, adminID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, apperrors.InternalWrap(err)
		}
		detail.Administrators = append(detail.Administrators, dto.NewPerson(admin))
	}

	if e.CanManage(viewer) {
		detail.Applicants = make([]string, 0, len(e.Applicants))
		for _, a := range e.Applicants {
			detail.Applicants = append(detail.Applicants, a.Hex())
		}
	}
	return detail, nil
}

func (ec *EventController) countUpload(status string) {
	if ec.Metrics != nil {
		ec.Metrics.UploadsTotal.WithLabelValues(ec.Uploader.Name(), status).Inc()
	}
}

func parseEventFilter(c *gin.Context) (models.EventFilter, error) {
	filter := models.EventFilter{
		PublishedOnly: true,
		Name:          strings.TrimSpace(c.Query("name")),
		Category:      strings.TrimSpace(c.Query("category")),
		Place:         strings.TrimSpace(c.Query("place")),
	}

	if v := c.Query("creator"); v != "" {
		creator, err := bson.ObjectIDFromHex(v)
		if err != nil {
			return filter, apperrors.Field("creator", "creator must be a valid id")
		}
		filter.Creator = &creator
	}
	if v := c.Query("date"); v != "" {
		date, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperrors.Field("date", "date must be an RFC 3339 timestamp")
		}
		date = date.UTC()
		filter.Date = &date
	}
	free, err := utils.ParseBoolQuery(c.Query("free"))
	if err != nil {
		return filter, apperrors.Field("free", "free must be true or false")
	}
	filter.IsFree = free
	if v := c.Query("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, apperrors.Field("price", "price must be a number")
		}
		filter.Price = &price
	}
	return filter, nil
}

func nextPageURL(c *gin.Context, page, limit int) string {
	u := *c.Request.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.RequestURI()
}

func uniqueIDs(ids []bson.ObjectID) []bson.ObjectID {
	seen := make(map[bson.ObjectID]bool, len(ids))
	out := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
