package router

import (
	"time"

	"minty/api"
	"minty/config"
	_ "minty/docs"
	"minty/middleware"
	"minty/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter 设置路由
// feed 与 email 由 main 构建后注入，便于测试时替换
func SetupRouter(cfg *config.Config, feed *service.FeedHub, email *service.EmailService) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	// CORS 中间件
	r.Use(CORSMiddleware())

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	authHandler := api.NewAuthHandler(cfg)
	categoryHandler := api.NewCategoryHandler(feed)
	budgetHandler := api.NewBudgetHandler(feed)
	transactionHandler := api.NewTransactionHandler(feed)
	summaryHandler := api.NewSummaryHandler()
	exportHandler := api.NewExportHandler()
	notificationHandler := api.NewNotificationHandler(email)
	feedHandler := api.NewFeedHandler(feed)
	aiModelHandler := api.NewAIModelHandler()
	aiChatHandler := api.NewAIChatHandler()
	aiInsightHandler := api.NewAIInsightHandler()

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		// 认证相关路由（无需登录）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", middleware.LoginRateLimit(10, time.Minute), authHandler.Login)
		}

		// 需要 JWT 认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth())
		{
			// 用户相关
			authorized.GET("/auth/profile", authHandler.GetProfile)
			authorized.PUT("/auth/profile", authHandler.UpdateProfile)
			authorized.PUT("/auth/password", authHandler.ChangePassword)

			// 分类
			categories := authorized.Group("/categories")
			{
				categories.GET("", categoryHandler.List)
				categories.POST("", categoryHandler.Create)
				categories.PUT("/:id", categoryHandler.Update)
				categories.DELETE("/:id", categoryHandler.Delete)
			}

			// 预算
			budgets := authorized.Group("/budgets")
			{
				budgets.GET("", budgetHandler.List)
				budgets.POST("", budgetHandler.Create)
				budgets.GET("/:id", budgetHandler.Get)
				budgets.PUT("/:id", budgetHandler.Update)
				budgets.DELETE("/:id", budgetHandler.Delete)
				budgets.POST("/:id/recalc", budgetHandler.Recalc)
			}

			// 交易
			transactions := authorized.Group("/transactions")
			{
				transactions.POST("", transactionHandler.Create)
				transactions.GET("", transactionHandler.List)
				transactions.GET("/:id", transactionHandler.Get)
				transactions.PUT("/:id", transactionHandler.Update)
				transactions.DELETE("/:id", transactionHandler.Delete)
			}

			// 统计
			summary := authorized.Group("/summary")
			{
				summary.GET("", summaryHandler.GetSummary)
				summary.GET("/categories", summaryHandler.GetCategoryStats)
				summary.GET("/trend", summaryHandler.GetMonthlyTrend)
				summary.GET("/budgets", summaryHandler.GetBudgetUsage)
				summary.GET("/projection", summaryHandler.GetProjection)
			}

			// 导出
			export := authorized.Group("/export")
			{
				export.GET("/csv", exportHandler.ExportCSV)
				export.GET("/excel", exportHandler.ExportExcel)
				export.GET("/json", exportHandler.ExportJSON)
			}

			// 通知设置
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("/settings", notificationHandler.GetSettings)
				notifications.PUT("/settings", notificationHandler.UpdateSettings)
				notifications.POST("/test-email", notificationHandler.SendTestEmail)
			}

			// 数据变更推送
			authorized.GET("/ws", feedHandler.Subscribe)

			// AI模型管理
			aiModels := authorized.Group("/ai/models")
			{
				aiModels.GET("", aiModelHandler.GetAllAIModels)
				aiModels.GET("/:id", aiModelHandler.GetAIModel)
				aiModels.POST("", aiModelHandler.CreateAIModel)
				aiModels.PUT("/reorder", aiModelHandler.ReorderAIModels)
				aiModels.PUT("/:id", aiModelHandler.UpdateAIModel)
				aiModels.POST("/:id/test", aiModelHandler.TestAIModel)
				aiModels.DELETE("/:id", aiModelHandler.DeleteAIModel)
			}

			// AI聊天与洞察（重操作带最小间隔限流）
			ai := authorized.Group("/ai")
			{
				ai.POST("/chat", middleware.OperationRateLimit("ai-chat", 2*time.Second), aiChatHandler.ChatStream)
				ai.GET("/chat/history", aiChatHandler.ChatHistory)
				ai.DELETE("/chat/history/:id", aiChatHandler.DeleteChatHistory)

				ai.POST("/insights", middleware.OperationRateLimit("ai-insights", 2*time.Second), aiInsightHandler.GenerateInsights)
				ai.GET("/insights/history", aiInsightHandler.ListInsightHistory)
				ai.DELETE("/insights/history/:id", aiInsightHandler.DeleteInsightHistory)
			}
		}
	}

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
