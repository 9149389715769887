package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/observability"
)

const maxBodyBytes = 1 << 20

type AuthService interface {
	middlewares.Authenticator
	handlers.AuthFlows
}

// Deps is everything the router mounts. Ready may be nil.
type Deps struct {
	Config  config.Config
	Auth    AuthService
	Users   handlers.UserManager
	Tasks   handlers.TaskManager
	Roles   handlers.RoleLister
	Prom    *observability.Prom
	Metrics prometheus.Gatherer
	Ready   func(ctx context.Context) error
}

func NewRouter(deps Deps) (*gin.Engine, error) {
	cfg := deps.Config

	if cfg.Env != "dev" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	tmpl, err := handlers.Templates()
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if cfg.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.NewAuthMiddleware(deps.Auth).Identify())
	r.Use(middlewares.Gate(access.DefaultPolicy(), deps.Prom))

	// health
	ping := func() error {
		if deps.Ready == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return deps.Ready(ctx)
	}

	health := handlers.NewHealthHandler(ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})))
	}

	r.StaticFS("/static", http.FS(handlers.Static()))

	secure := cfg.Env == "prod"
	loginLimiter := middlewares.NewRateLimiter(cfg.LoginRatePerMinute, time.Minute)
	limitLogin := loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP)

	authH := handlers.NewAuthHandler(deps.Auth, deps.Users, secure)
	usersH := handlers.NewUsersHandler(deps.Users)
	tasksH := handlers.NewTasksHandler(deps.Tasks)
	rolesH := handlers.NewRolesHandler(deps.Roles)
	web := handlers.NewWebHandler(authH, deps.Users, deps.Tasks, secure)

	// pages
	r.GET("/", web.Home)
	r.GET(access.LoginPage, web.LoginPage)
	r.POST(access.LoginPage, limitLogin, web.Login)
	r.POST("/logout", web.Logout)
	r.GET("/register", web.RegisterPage)
	r.POST("/register", limitLogin, web.Register)
	r.GET(access.AccessDeniedPage, web.AccessDenied)

	r.GET(access.UserDashboard, web.Dashboard)
	r.POST("/task/create", web.CreateTask)
	r.POST("/task/delete", web.DeleteTasks)
	r.POST("/task/update-status", web.UpdateTaskStatus)
	r.POST("/user/update-info", web.UpdateInfo)
	r.POST("/user/update-password", web.UpdatePassword)

	r.GET(access.AdminDashboard, web.AdminDashboard)
	r.GET("/admin/users/:id/tasks", web.AdminUserTasks)
	r.POST("/admin/users", web.AdminCreateUser)
	r.POST("/admin/users/:id/tasks", web.AdminCreateTask)
	r.POST("/admin/users/:id/delete", web.AdminDeleteUser)
	r.POST("/admin/users/:id/tasks/delete", web.AdminDeleteTasks)
	r.POST("/admin/users/:id/tasks/update-status", web.AdminUpdateTaskStatus)
	r.POST("/admin/users/:id/update-info", web.AdminUpdateInfo)

	// json api
	api := r.Group("/api", middlewares.RequireJSON())
	api.POST("/register", limitLogin, authH.SignUp)
	api.POST("/auth/login", limitLogin, authH.Login)
	api.POST("/auth/refresh", authH.Refresh)
	api.POST("/auth/logout", authH.Logout)

	api.GET("/me", usersH.Me)
	api.PUT("/me/password", usersH.UpdatePassword)
	api.PATCH("/users/:id", usersH.UpdateProfile)
	api.GET("/users/:id/tasks", tasksH.List)
	api.POST("/users/:id/tasks", tasksH.Create)
	api.PATCH("/tasks/:id/status", tasksH.ToggleStatus)
	api.DELETE("/tasks/:id", tasksH.Delete)
	api.GET("/roles", rolesH.List)

	admin := api.Group("/admin")
	admin.GET("/users", usersH.List)
	admin.POST("/users", usersH.Create)
	admin.GET("/users/:id", usersH.Get)
	admin.DELETE("/users/:id", usersH.Delete)
	admin.PUT("/users/:id/roles", usersH.SetRoles)
	admin.PUT("/users/:id/enabled", usersH.SetEnabled)

	return r, nil
}
