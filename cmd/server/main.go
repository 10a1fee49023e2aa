// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"kkx-toolkit-go/internal/config"
	"kkx-toolkit-go/internal/handler"
	"kkx-toolkit-go/internal/middleware"
	"kkx-toolkit-go/internal/repository"
	"kkx-toolkit-go/internal/service"
	"kkx-toolkit-go/pkg/database"
	"kkx-toolkit-go/pkg/llm"
	"kkx-toolkit-go/pkg/log"
	"kkx-toolkit-go/pkg/retry"
	"kkx-toolkit-go/pkg/tasks"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")
	if cfg.LLM.APIKey == "" {
		log.Warnf("未配置 Gemini API key，聊天将返回错误提示，资讯列表为空")
	}

	// 3. 初始化键值存储
	kv, err := newKVStore(cfg)
	if err != nil {
		log.Fatal("初始化存储失败", err)
	}
	defer kv.Close()

	// 4. 初始化 Service (依赖注入)
	llmClient := llm.NewClient(cfg.LLM,
		retry.WithRetries(cfg.Retry.Retries),
		retry.WithDelay(cfg.Retry.Delay()),
		retry.WithMaxDelay(cfg.Retry.MaxDelay()),
	)
	preferenceService := service.NewPreferenceService(repository.NewPreferenceRepository(kv))
	chatService := service.NewChatService(llmClient, kv, cfg.Chat)
	newsService := service.NewNewsService(llmClient, cfg.News)

	// 5. 启动后台定时任务
	scheduler := tasks.NewScheduler()
	if cfg.Chat.QuotaReset == config.QuotaResetDaily {
		if err := scheduler.ScheduleQuotaReset(cfg.Chat.ResetSchedule, kv); err != nil {
			log.Fatal("注册配额重置任务失败", err)
		}
	}
	scheduler.Start()

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 设备标识需要在日志之前写入上下文
	r.Use(middleware.DeviceIdentity(), middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	chatHandler := handler.NewChatHandler(chatService, preferenceService)
	apiV1 := r.Group("/api/v1")
	{
		chatGroup := apiV1.Group("/chat")
		{
			chatGroup.GET("/ws", chatHandler.Handle)
			chatGroup.GET("/quota", chatHandler.Quota)
		}

		apiV1.GET("/news", handler.NewNewsHandler(newsService, preferenceService).Latest)

		prefs := apiV1.Group("/preferences")
		{
			prefs.GET("/language", handler.NewPreferenceHandler(preferenceService).GetLanguage)
			prefs.PUT("/language", handler.NewPreferenceHandler(preferenceService).SetLanguage)
		}
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
	})

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

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	scheduler.Stop()

	log.Info("服务已优雅关闭")
}

// newKVStore 根据 storage.driver 选择存储后端。
func newKVStore(cfg config.Config) (repository.KVStore, error) {
	switch cfg.Storage.Driver {
	case "redis":
		if err := database.InitRedis(cfg.Database.Redis); err != nil {
			return nil, err
		}
		return repository.NewRedisKVStore(database.RDB), nil
	case "sqlite":
		return repository.NewSQLiteKVStore(cfg.Storage.SQLitePath)
	case "memory":
		log.Warnf("使用内存存储，重启后配额与语言偏好会丢失")
		return repository.NewMemoryKVStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
