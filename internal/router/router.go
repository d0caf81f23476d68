package router

import (
	"proxy-panel/internal/config"
	"proxy-panel/internal/core"
	"proxy-panel/internal/handler"
	"proxy-panel/internal/middleware"
	"proxy-panel/internal/xray"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter configures the gin engine and wires every handler with its
// dependencies.
func SetupRouter(cfg *config.Config, db *gorm.DB, catalog *core.CatalogHolder,
	locks *core.UserLocker, notifier xray.ConfigNotifier) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	jwtSecret := cfg.JWT.Secret

	// client-facing subscription endpoint, token is the credential
	subHandler := handler.NewSubscriptionHandler(db, catalog, locks, notifier, jwtSecret, cfg.Xray.Host)
	r.GET("/sub/:token", subHandler.Fetch)

	// ====== admin API ======
	api := r.Group("/api")

	authHandler := handler.NewAuthHandler(db, jwtSecret, cfg.JWT.ExpireHours)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(
		middleware.AuthMiddleware(jwtSecret, db),
		middleware.AuditMiddleware(db),
	)

	userHandler := handler.NewUserHandler(db, catalog, locks, notifier,
		jwtSecret, cfg.Subscription.URLPrefix, cfg.Subscription.TokenTTLHours)
	protected.POST("/user", userHandler.CreateUser)
	protected.GET("/users", userHandler.ListUsers)
	protected.GET("/user/:username", userHandler.GetUser)
	protected.PUT("/user/:username", userHandler.ModifyUser)
	protected.DELETE("/user/:username", userHandler.DeleteUser)
	protected.POST("/user/:username/usage", userHandler.ReportUsage)
	protected.POST("/user/:username/reset", userHandler.ResetUsage)
	protected.POST("/system/tick", userHandler.Tick)

	groupHandler := handler.NewGroupHandler(db, catalog)
	protected.POST("/group", groupHandler.CreateGroup)
	protected.GET("/groups", groupHandler.ListGroups)
	protected.GET("/group/:id", groupHandler.GetGroup)
	protected.PUT("/group/:id", groupHandler.ModifyGroup)
	protected.DELETE("/group/:id", groupHandler.DeleteGroup)

	templateHandler := handler.NewTemplateHandler(db)
	protected.POST("/user_template", templateHandler.CreateTemplate)
	protected.GET("/user_templates", templateHandler.ListTemplates)
	protected.GET("/user_template/:id", templateHandler.GetTemplate)
	protected.PUT("/user_template/:id", templateHandler.ModifyTemplate)
	protected.DELETE("/user_template/:id", templateHandler.DeleteTemplate)

	systemHandler := handler.NewSystemHandler(db, catalog, cfg.Xray.ConfigPath)
	protected.GET("/system/inbounds", systemHandler.GetCatalog)
	protected.POST("/system/inbounds/reload", systemHandler.ReloadCatalog)

	logHandler := handler.NewLogHandler(db)
	protected.GET("/logs", logHandler.ListLogs)

	exportHandler := handler.NewExportHandler(db)
	protected.GET("/export/users.xlsx", exportHandler.ExportUsersXLSX)

	backupHandler := handler.NewBackupHandler(db, cfg.Security.EncryptionKey, cfg.Backup.Dir, cfg.Database.Path)
	protected.POST("/backups", backupHandler.CreateBackup)
	protected.GET("/backups", backupHandler.ListBackups)
	protected.GET("/backups/:id/download", backupHandler.DownloadBackup)
	protected.POST("/backups/:id/restore", backupHandler.RestoreBackup)
	protected.DELETE("/backups/:id", backupHandler.DeleteBackup)

	return r
}
