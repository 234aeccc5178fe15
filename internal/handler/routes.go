package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-defense-api/internal/middleware"
	"github.com/noah-isme/thesis-defense-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Thesis       *ThesisHandler
	Defense      *DefenseHandler
	Panel        *PanelHandler
	Availability *AvailabilityHandler
	Export       *ExportHandler
	Metrics      *MetricsHandler
}

// RegisterRoutes mounts authenticated API routes on the group.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator) {
	staff := middleware.RequireRoles(models.RoleAdmin)
	organizers := middleware.RequireRoles(models.RoleAdmin, models.RoleAdviser)
	reviewers := middleware.RequireRoles(models.RoleAdmin, models.RoleAdviser, models.RoleStudent)
	panel := middleware.RequireRoles(models.RolePanelMember, models.RoleAdviser, models.RoleAdmin)

	protected := api.Group("", middleware.JWT(tokens), middleware.WithResponseMeta())

	theses := protected.Group("/theses")
	theses.POST("", staff, h.Thesis.Create)
	theses.GET("/:id", h.Thesis.Get)
	theses.POST("/:id/documents", reviewers, h.Thesis.DocumentEvent)
	theses.POST("/:id/archive", staff, h.Thesis.Archive)
	theses.GET("/:id/history", h.Thesis.History)
	theses.GET("/:id/defenses", h.Thesis.Defenses)

	defenses := protected.Group("/defenses")
	defenses.GET("", h.Defense.List)
	defenses.POST("", organizers, h.Defense.Create)
	defenses.POST("/auto", organizers, h.Defense.AutoSchedule)
	defenses.POST("/free-slots", organizers, h.Defense.FreeSlots)
	defenses.GET("/export", organizers, h.Export.Docket)
	defenses.GET("/:id", h.Defense.Get)
	defenses.POST("/:id/reschedule", organizers, h.Defense.Reschedule)
	defenses.POST("/:id/cancel", organizers, h.Defense.Cancel)
	defenses.POST("/:id/start", organizers, h.Defense.Start)
	defenses.POST("/:id/complete", organizers, h.Defense.Complete)
	defenses.POST("/:id/panel-actions", panel, h.Panel.Submit)
	defenses.GET("/:id/panel-actions", h.Panel.List)
	defenses.GET("/:id/panel-actions/history", h.Panel.History)
	defenses.GET("/:id/outcome", h.Panel.Outcome)

	protected.GET("/participants/:id/calendar.ics", h.Export.Calendar)

	users := protected.Group("/users/:userID")
	users.GET("/availability", middleware.RBAC(string(models.RoleAdmin), string(models.RoleAdviser), middleware.SelfParam), h.Availability.List)
	users.PUT("/availability", middleware.RBAC(string(models.RoleAdmin), middleware.SelfParam), h.Availability.Replace)

	protected.GET("/metrics/summary", staff, h.Metrics.Summary)
}

// RegisterProbes mounts unauthenticated health and scrape endpoints on the engine root.
func RegisterProbes(r *gin.Engine, h *MetricsHandler) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
}
