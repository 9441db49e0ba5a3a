package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"gitlab.com/dirk.krummacker/contacts-service/internal/flash"
	"gitlab.com/dirk.krummacker/contacts-service/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-service/internal/metrics"
	"gitlab.com/dirk.krummacker/contacts-service/internal/model"
	"gitlab.com/dirk.krummacker/contacts-service/internal/page"
	"gitlab.com/dirk.krummacker/contacts-service/internal/pagination"
	"gitlab.com/dirk.krummacker/contacts-service/internal/store"
	"gitlab.com/dirk.krummacker/contacts-service/internal/validation"
	"go.uber.org/zap"
)

// Notices shown after a successful mutation.
const (
	createdNotice = "Contact created successfully."
	updatedNotice = "Contact updated successfully."
	deletedNotice = "Contact deleted successfully."
)

// Contacts is the storage the service works on.
type Contacts interface {
	List(ctx context.Context, filter string, page int) (store.Page, error)
	Get(ctx context.Context, id int64) (model.Contact, error)
	Create(ctx context.Context, fields model.Fields) (model.Contact, error)
	Update(ctx context.Context, id int64, fields model.Fields) (model.Contact, error)
	SoftDelete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// Options configure the HTTP layer of the service.
type Options struct {
	Logger *zap.Logger
	// Flash keeps notices and validation errors across redirects. Defaults to a cookie store.
	Flash flash.Store
	// RequestLogging turns the log line for every successful request on.
	RequestLogging bool
	// Production turns on redirects to HTTPS.
	Production bool
	// RateLimit is the number of requests per minute and client IP. Zero turns limiting off.
	RateLimit int
	// AssetVersion identifies the client-side assets. Clients with other assets reload.
	AssetVersion string
}

// Service answers the HTTP requests for contacts.
type Service struct {
	contacts Contacts
	pages    *page.Renderer
	metrics  *metrics.HTTPMetrics
	opts     Options
}

// New creates the service on top of the contact storage.
func New(contacts Contacts, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Flash == nil {
		opts.Flash = flash.CookieStore{Secure: opts.Production}
	}
	if opts.AssetVersion == "" {
		opts.AssetVersion = "1"
	}
	return &Service{
		contacts: contacts,
		pages:    page.NewRenderer(opts.Flash, opts.AssetVersion),
		metrics:  metrics.New(),
		opts:     opts,
	}
}

// SetupHttpRouter initializes the router and registers all endpoints.
func (s *Service) SetupHttpRouter() *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		logger.RequestID(s.opts.Logger),
		logger.Requests(s.opts.RequestLogging),
		s.metrics.Middleware(),
		securityHeaders(s.opts.Production),
	)
	s.pages.Install(router)

	router.GET("/", s.welcome)
	router.GET("/healthz", s.health)
	router.GET("/metrics", s.metrics.Handler())

	router.GET("/contacts", s.listContacts)
	router.GET("/contacts/create", s.createForm)
	router.POST("/contacts", s.storeContact)
	router.GET("/contacts/:id", s.showContact)
	router.GET("/contacts/:id/edit", s.editForm)
	router.PUT("/contacts/:id", s.updateContact)
	router.PATCH("/contacts/:id", s.updateContact)
	router.DELETE("/contacts/:id", s.destroyContact)
	return router
}

// Handler returns the complete HTTP handler: the router behind method spoofing for HTML forms and
// the optional rate limit.
func (s *Service) Handler() http.Handler {
	var handler http.Handler = methodOverride(s.SetupHttpRouter())
	if s.opts.RateLimit > 0 {
		handler = httprate.LimitByIP(s.opts.RateLimit, time.Minute)(handler)
	}
	return handler
}

// securityHeaders adds the usual protective response headers.
func securityHeaders(production bool) gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        production,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})
	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		// Process has answered with a redirect to HTTPS.
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
		}
	}
}

// methodOverride lets HTML forms, which can only GET and POST, send PUT, PATCH and DELETE requests
// by posting a '_method' field or the X-HTTP-Method-Override header.
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			override := r.Header.Get("X-HTTP-Method-Override")
			contentType := r.Header.Get("Content-Type")
			if override == "" && (strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
				strings.HasPrefix(contentType, "multipart/form-data")) {
				override = r.PostFormValue("_method")
			}
			switch method := strings.ToUpper(override); method {
			case http.MethodPut, http.MethodPatch, http.MethodDelete:
				r.Method = method
			}
		}
		next.ServeHTTP(w, r)
	})
}

// welcome renders the landing page.
func (s *Service) welcome(c *gin.Context) {
	s.pages.Render(c, "welcome", nil)
}

// health responds with OK if the database can be reached.
//
// Example REST API call:
//
//	> curl http://localhost:8080/healthz
func (s *Service) health(c *gin.Context) {
	if err := s.contacts.Ping(c.Request.Context()); err != nil {
		c.Error(err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listContacts renders the page with the list of contacts, newest first, ten per page.
//
// The URL parameter 'search' restricts the list to the contacts that contain the search term,
// ignoring case, in their name, email, company or phone. The URL parameter 'page' selects the page;
// missing or invalid values select the first page.
//
// Example calls:
//
//	> curl "http://localhost:8080/contacts"
//	> curl "http://localhost:8080/contacts?search=john&page=2" --header "X-Inertia: true"
func (s *Service) listContacts(c *gin.Context) {
	search := strings.TrimSpace(c.Query("search"))
	pageNumber, err := strconv.Atoi(c.Query("page"))
	if err != nil || pageNumber < 1 {
		pageNumber = 1
	}

	result, err := s.contacts.List(c.Request.Context(), search, pageNumber)
	if err != nil {
		s.fail(c, err)
		return
	}
	contacts := pagination.New(result.Contacts, result.Total, result.PerPage, result.Page,
		c.Request.URL.Path, c.Request.URL.Query())
	s.pages.Render(c, "contacts/index", gin.H{
		"contacts": contacts,
		"search":   search,
	})
}

// createForm renders the empty form for a new contact.
func (s *Service) createForm(c *gin.Context) {
	s.pages.Render(c, "contacts/create", nil)
}

// storeContact validates the submitted contact, inserts it into the database and redirects to the
// page of the new contact. If the submitted data is invalid, nothing is stored and the client is
// sent back to the form with the errors.
//
// Example call:
//
//	> curl http://localhost:8080/contacts --request "POST" --include --header "Content-Type: application/json" --data '{"name": "Hans Wurst", "email": "hans@example.com", "phone": "0815"}'
func (s *Service) storeContact(c *gin.Context) {
	var request validation.StoreContactRequest
	if err := c.ShouldBind(&request); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if err := request.Validate(); err != nil {
		s.invalid(c, err, "/contacts/create")
		return
	}

	contact, err := s.contacts.Create(c.Request.Context(), request.Fields())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.Mutation("created")
	logger.FromGin(c).Info("contact created", zap.Int64("id", contact.Id))
	s.pages.Redirect(c, contactURL(contact.Id), flash.Flash{Success: createdNotice})
}

// showContact renders the page of the contact whose id matches the id parameter of the request
// URL.
//
// Example call:
//
//	> curl http://localhost:8080/contacts/56 --header "X-Inertia: true"
func (s *Service) showContact(c *gin.Context) {
	contact, ok := s.loadContact(c)
	if !ok {
		return
	}
	s.pages.Render(c, "contacts/show", gin.H{"contact": contact})
}

// editForm renders the form for changing the contact, filled with its current values.
func (s *Service) editForm(c *gin.Context) {
	contact, ok := s.loadContact(c)
	if !ok {
		return
	}
	s.pages.Render(c, "contacts/edit", gin.H{"contact": contact})
}

// updateContact updates the contact whose id matches the id parameter of the request URL with the
// submitted values (and only those), then redirects to the page of the contact. If a submitted
// value is invalid, nothing is changed and the client is sent back to the form with the errors.
//
// Example calls:
//
//	> curl http://localhost:8080/contacts/56 --request "PUT" --include --header "Content-Type: application/json" --data '{"phone": "81970"}'
//	> curl http://localhost:8080/contacts/56 --request "POST" --include --data "_method=PUT&company=ACME"
func (s *Service) updateContact(c *gin.Context) {
	contact, ok := s.loadContact(c)
	if !ok {
		return
	}
	var request validation.UpdateContactRequest
	// An empty body supplies no fields, like "{}".
	if err := c.ShouldBind(&request); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	if err := request.Validate(); err != nil {
		s.invalid(c, err, editURL(contact.Id))
		return
	}

	updated, err := s.contacts.Update(c.Request.Context(), contact.Id, request.Fields())
	if errors.Is(err, store.ErrNotFound) {
		// deleted since it was loaded
		s.notFound(c)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.Mutation("updated")
	logger.FromGin(c).Info("contact updated", zap.Int64("id", updated.Id))
	s.pages.Redirect(c, contactURL(updated.Id), flash.Flash{Success: updatedNotice})
}

// destroyContact soft-deletes the contact whose id matches the id parameter of the request URL and
// redirects to the list of contacts.
//
// Example call:
//
//	> curl http://localhost:8080/contacts/56 --request "DELETE" --include
func (s *Service) destroyContact(c *gin.Context) {
	contact, ok := s.loadContact(c)
	if !ok {
		return
	}
	err := s.contacts.SoftDelete(c.Request.Context(), contact.Id)
	if errors.Is(err, store.ErrNotFound) {
		s.notFound(c)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.Mutation("deleted")
	logger.FromGin(c).Info("contact deleted", zap.Int64("id", contact.Id))
	s.pages.Redirect(c, "/contacts", flash.Flash{Success: deletedNotice})
}

// loadContact looks up the live contact named by the id parameter of the request URL. If there is
// none, the request is answered with NOT FOUND and false is returned. Ids that are not numbers
// never reach the database.
func (s *Service) loadContact(c *gin.Context) (model.Contact, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "invalid id parameter"})
		return model.Contact{}, false
	}
	contact, err := s.contacts.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.notFound(c)
		return model.Contact{}, false
	}
	if err != nil {
		s.fail(c, err)
		return model.Contact{}, false
	}
	return contact, true
}

// invalid answers a request whose data failed validation. API clients receive the errors as JSON,
// everybody else is sent back to the form.
func (s *Service) invalid(c *gin.Context, err error, form string) {
	var validationErr *validation.Error
	if !errors.As(err, &validationErr) {
		s.fail(c, err)
		return
	}
	if wantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"message": validationErr.Error(),
			"errors":  validationErr.Fields,
		})
		return
	}
	s.pages.Redirect(c, page.Back(c, form), flash.Flash{Errors: validationErr.First()})
}

func (s *Service) notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
}

// fail answers with INTERNAL SERVER ERROR. The error is logged by the request logger.
func (s *Service) fail(c *gin.Context, err error) {
	c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
}

// wantsJSON reports whether the client is an API client rather than the page app.
func wantsJSON(c *gin.Context) bool {
	return !page.IsPageRequest(c) && strings.Contains(c.GetHeader("Accept"), "application/json")
}

func contactURL(id int64) string {
	return fmt.Sprintf("/contacts/%d", id)
}

func editURL(id int64) string {
	return fmt.Sprintf("/contacts/%d/edit", id)
}
