// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-tutor-go/internal/config"
	"campus-tutor-go/internal/handler"
	"campus-tutor-go/internal/middleware"
	"campus-tutor-go/internal/model"
	"campus-tutor-go/internal/pipeline"
	"campus-tutor-go/internal/repository"
	"campus-tutor-go/internal/service"
	"campus-tutor-go/pkg/database"
	"campus-tutor-go/pkg/embedding"
	"campus-tutor-go/pkg/llm"
	"campus-tutor-go/pkg/log"
	"campus-tutor-go/pkg/mailer"
	"campus-tutor-go/pkg/queue"
	"campus-tutor-go/pkg/storage"
	"campus-tutor-go/pkg/tika"
	"campus-tutor-go/pkg/token"
	"campus-tutor-go/pkg/vectorindex"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与外部存储
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := vectorindex.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	queue.InitProducer(cfg.Kafka)

	if err := database.DB.AutoMigrate(&model.InteractionRecord{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 4. 初始化 Repository
	credentialRepo := repository.NewCredentialRepository(database.RDB)
	quotaRepo := repository.NewQuotaRepository(database.RDB)
	conversationRepo := repository.NewConversationRepository(database.RDB)
	feedbackRepo := repository.NewFeedbackRepository(database.RDB)
	interactionRepo := repository.NewInteractionRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TokenExpireHours)
	codeMailer := mailer.NewMailer(cfg.SMTP)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient, err := llm.NewClient(context.Background(), cfg.LLM)
	if err != nil {
		log.Fatalf("LLM 客户端初始化失败: %v", err)
	}
	defer llmClient.Close()

	authService := service.NewAuthService(credentialRepo, codeMailer, jwtManager)
	quotaService := service.NewQuotaService(quotaRepo, credentialRepo, cfg.Quota.DailyLimit)
	adminService := service.NewAdminService(credentialRepo, interactionRepo, cfg.MinIO.BucketName)
	feedbackService := service.NewFeedbackService(feedbackRepo, conversationRepo)
	chatService := service.NewChatService(
		embeddingClient,
		service.ESRetriever{IndexName: cfg.Elasticsearch.IndexName},
		llmClient,
		conversationRepo,
		interactionRepo,
		cfg.LLM,
		cfg.Filter,
	)

	// 6. 初始化导入管道 (Processor)
	processor := pipeline.NewProcessor(
		tikaClient,
		embeddingClient,
		cfg.Elasticsearch,
		cfg.Embedding,
		cfg.MinIO,
		cfg.Ingest,
	)

	// 7. 启动后台 Kafka 消费者
	go queue.StartConsumer(cfg.Kafka, processor)

	// 7.1 写入初始管理员，管理员同时进入白名单
	seedAdmins(adminService, cfg.Bootstrap.Admins)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService, authService, quotaService)
	quotaHandler := handler.NewQuotaHandler(quotaService)
	feedbackHandler := handler.NewFeedbackHandler(feedbackService)
	adminHandler := handler.NewAdminHandler(adminService, quotaService)

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组 (公开访问)
		auth := apiV1.Group("/auth")
		{
			auth.POST("/request-code", authHandler.RequestCode)
			auth.POST("/verify", authHandler.VerifyCode)
		}

		// 需要认证的路由
		authed := apiV1.Group("/")
		authed.Use(middleware.AuthMiddleware(authService, credentialRepo))
		{
			authed.POST("/chat/clear", chatHandler.ClearHistory)
			authed.GET("/chat/history", chatHandler.GetHistory)
			authed.GET("/quota", quotaHandler.GetQuota)
			authed.POST("/feedback", feedbackHandler.Submit)
		}

		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := apiV1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(authService, credentialRepo), middleware.AdminAuthMiddleware())
		{
			admin.GET("/whitelist", adminHandler.ListWhitelist)
			admin.POST("/whitelist", adminHandler.AddToWhitelist)
			admin.DELETE("/whitelist", adminHandler.RemoveFromWhitelist)

			admin.GET("/admins", adminHandler.ListAdmins)
			admin.POST("/admins", adminHandler.GrantAdmin)
			admin.DELETE("/admins", adminHandler.RevokeAdmin)

			admin.GET("/quota", adminHandler.GetQuotaUsage)
			admin.GET("/interactions", adminHandler.ListInteractions)

			admin.GET("/feedback", feedbackHandler.List)
			admin.GET("/feedback/stats", feedbackHandler.Stats)
			admin.PUT("/feedback/:id/status", feedbackHandler.UpdateStatus)

			admin.POST("/reindex", adminHandler.TriggerReindex)
			admin.GET("/sources/url", adminHandler.GetSourceURL)
		}
	}

	// Chat 路由 (WebSocket)，token 经路径参数传入
	r.GET("/chat/:token", chatHandler.Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}

// seedAdmins 确保配置中的初始管理员存在（幂等）。
func seedAdmins(adminService service.AdminService, admins []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, identity := range admins {
		if identity == "" {
			continue
		}
		if err := adminService.GrantAdmin(ctx, identity); err != nil {
			log.Warnf("seedAdmins: 写入初始管理员 '%s' 失败: %v", identity, err)
			continue
		}
		log.Infof("seedAdmins: 初始管理员已就绪: %s", identity)
	}
}
