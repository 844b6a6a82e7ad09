package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/christlifeministries/portal/internal/applications"
	"github.com/christlifeministries/portal/internal/auth"
	"github.com/christlifeministries/portal/internal/broadcast"
	"github.com/christlifeministries/portal/internal/certificates"
	"github.com/christlifeministries/portal/internal/donations"
	"github.com/christlifeministries/portal/internal/drafts"
	"github.com/christlifeministries/portal/internal/events"
	"github.com/christlifeministries/portal/internal/metrics"
	"github.com/christlifeministries/portal/internal/notifications"
	"github.com/christlifeministries/portal/internal/payments"
	"github.com/christlifeministries/portal/internal/storage"
	"github.com/christlifeministries/portal/internal/uploads"
	"github.com/christlifeministries/portal/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingSessions      = errors.New("session validator dependency required")
	errMissingUsers         = errors.New("users service dependency required")
	errMissingDrafts        = errors.New("drafts service dependency required")
	errMissingSubmitter     = errors.New("application submitter dependency required")
	errMissingReviewer      = errors.New("application reviewer dependency required")
	errMissingPayments      = errors.New("payments service dependency required")
	errMissingDonations     = errors.New("donations service dependency required")
	errMissingEvents        = errors.New("events service dependency required")
	errMissingBroadcasts    = errors.New("broadcast service dependency required")
	errMissingCertificates  = errors.New("certificates service dependency required")
	errMissingNotifications = errors.New("notifications service dependency required")
	errMissingUploader      = errors.New("uploader dependency required")
	errMissingStorage       = errors.New("storage dependency required")
)

// SessionValidator authenticates an incoming request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

type Dependencies struct {
	Sessions      SessionValidator
	Users         *users.Service
	Drafts        *drafts.Service
	Submitter     *applications.Submitter
	Reviewer      *applications.Reviewer
	Payments      *payments.Service
	Donations     *donations.Service
	Events        *events.Service
	Broadcasts    *broadcast.Service
	Certificates  *certificates.Service
	Notifications *notifications.Service
	Uploader      *uploads.Uploader
	Storage       storage.Storage
	Realtime      *RealtimeDispatcher
	Metrics       *metrics.Metrics
	// DashboardURL receives members whose payment link no longer resolves.
	DashboardURL   string
	MaxUploadBytes int64
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errMissingSessions
	case deps.Users == nil:
		return nil, errMissingUsers
	case deps.Drafts == nil:
		return nil, errMissingDrafts
	case deps.Submitter == nil:
		return nil, errMissingSubmitter
	case deps.Reviewer == nil:
		return nil, errMissingReviewer
	case deps.Payments == nil:
		return nil, errMissingPayments
	case deps.Donations == nil:
		return nil, errMissingDonations
	case deps.Events == nil:
		return nil, errMissingEvents
	case deps.Broadcasts == nil:
		return nil, errMissingBroadcasts
	case deps.Certificates == nil:
		return nil, errMissingCertificates
	case deps.Notifications == nil:
		return nil, errMissingNotifications
	case deps.Uploader == nil:
		return nil, errMissingUploader
	case deps.Storage == nil:
		return nil, errMissingStorage
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 || maxUpload > uploads.MaxFileBytes {
		maxUpload = uploads.MaxFileBytes
	}
	dashboard := strings.TrimSpace(deps.DashboardURL)
	if dashboard == "" {
		dashboard = "/dashboard"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.MaxMultipartMemory = 8 << 20

	handler := &httpHandler{
		sessions:      deps.Sessions,
		users:         deps.Users,
		drafts:        deps.Drafts,
		submitter:     deps.Submitter,
		reviewer:      deps.Reviewer,
		payments:      deps.Payments,
		donations:     deps.Donations,
		events:        deps.Events,
		broadcasts:    deps.Broadcasts,
		certificates:  deps.Certificates,
		notifications: deps.Notifications,
		uploader:      deps.Uploader,
		storage:       deps.Storage,
		realtime:      realtime,
		validator:     newRequestValidator(),
		dashboardURL:  dashboard,
		maxUpload:     maxUpload,
		logger:        logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	router.GET("/events", handler.handleListEvents)
	router.GET("/events/:id", handler.handleGetEvent)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/me", handler.handleMe)
	protected.GET("/forms/:type/draft", handler.handleLoadDraft)
	protected.PUT("/forms/:type/draft", handler.handleSaveDraft)
	protected.POST("/forms/:type/steps/:step/validate", handler.handleValidateStep)
	protected.POST("/forms/:type/next", handler.handleNextStep)
	protected.POST("/forms/:type/previous", handler.handlePreviousStep)
	protected.POST("/applications", handler.handleSubmitApplication)
	protected.GET("/applications", handler.handleListOwnApplications)
	protected.POST("/uploads", handler.handleUpload)
	protected.GET("/files/*key", handler.handleServeFile)
	protected.GET("/payments/:id", handler.handleGetPayment)
	protected.POST("/payments/:id/confirm", handler.handleConfirmPayment)
	protected.POST("/donations", handler.handleDonate)
	protected.GET("/donations", handler.handleListDonations)
	protected.POST("/events/:id/registrations", handler.handleRegister)
	protected.GET("/registrations", handler.handleListRegistrations)
	protected.GET("/registrations/:id/ticket.pdf", handler.handleTicket)
	protected.GET("/certificates", handler.handleListCertificates)
	protected.GET("/certificates/:id/pdf", handler.handleCertificatePDF)
	protected.GET("/notifications", handler.handleListNotifications)
	protected.POST("/notifications/:id/read", handler.handleMarkNotificationRead)
	protected.GET("/realtime", handler.handleRealtimeStream)

	admin := protected.Group("/admin")
	admin.Use(handler.requireAdmin)
	admin.GET("/applications", handler.handleAdminListApplications)
	admin.GET("/applications/:id", handler.handleAdminGetApplication)
	admin.GET("/applications/:id/export.pdf", handler.handleAdminApplicationPDF)
	admin.PATCH("/applications/:id/status", handler.handleAdminChangeStatus)
	admin.GET("/exports/applications.csv", handler.handleAdminExportCSV)
	admin.POST("/broadcasts", handler.handleAdminBroadcast)
	admin.POST("/certificates", handler.handleAdminIssueCertificate)
	admin.POST("/certificates/:id/publish", handler.handleAdminPublishCertificate)
	admin.POST("/certificates/:id/revoke", handler.handleAdminRevokeCertificate)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(string) bool { return true },
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Accept", "Last-Event-ID"},
		ExposeHeaders:    []string{"Content-Disposition", "Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	sessions      SessionValidator
	users         *users.Service
	drafts        *drafts.Service
	submitter     *applications.Submitter
	reviewer      *applications.Reviewer
	payments      *payments.Service
	donations     *donations.Service
	events        *events.Service
	broadcasts    *broadcast.Service
	certificates  *certificates.Service
	notifications *notifications.Service
	uploader      *uploads.Uploader
	storage       storage.Storage
	realtime      *RealtimeDispatcher
	validator     *requestValidator
	dashboardURL  string
	maxUpload     int64
	logger        *zap.Logger
}

func (h *httpHandler) handleMe(c *gin.Context) {
	current := currentSession(c)
	c.JSON(http.StatusOK, gin.H{
		"profile":  current.Profile,
		"is_admin": current.IsAdmin(),
	})
}
