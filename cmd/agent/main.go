// Package main 是中继代理的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mindbridge-go/internal/config"
	"mindbridge-go/internal/handler"
	"mindbridge-go/internal/middleware"
	"mindbridge-go/internal/repository"
	"mindbridge-go/internal/service"
	"mindbridge-go/pkg/backend"
	"mindbridge-go/pkg/database"
	"mindbridge-go/pkg/log"
	"mindbridge-go/pkg/notify"
	"mindbridge-go/pkg/realtime"
	"mindbridge-go/pkg/token"

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

	// 3. 加载身份凭证（由登录流程写入磁盘，代理只读）
	jwtManager := token.NewJWTManager(cfg.Auth.Secret)
	tokens, err := token.NewFileProvider(cfg.Auth.TokenFile, jwtManager)
	if err != nil {
		log.Fatal("加载身份凭证失败", err)
	}
	ident, err := tokens.Identity()
	if err != nil {
		log.Fatal("解析身份信息失败", err)
	}
	log.Infof("身份已加载: user=%s role=%s college=%s", ident.UserID, ident.Role, ident.College)

	// 4. 可选的审计库
	var journalRepo repository.AlertJournalRepository
	if cfg.Journal.MySQLDSN != "" {
		database.InitMySQL(cfg.Journal.MySQLDSN)
		journalRepo = repository.NewAlertJournalRepository(database.DB)
	} else {
		log.Info("未配置审计库 DSN，预警审计已停用")
	}

	// 5. 初始化通知能力
	notifier := notify.NewDesktopNotifier(cfg.Notifications.Permission, cfg.Notifications.AutoGrant)
	toasts := notify.NewToastBus()

	// 6. 后端 REST 客户端与上游 WebSocket 连接
	backendClient := backend.NewClient(
		cfg.Backend.BaseURL,
		time.Duration(cfg.Backend.TimeoutSeconds)*time.Second,
		tokens,
	)
	rtClient := realtime.NewClient(realtime.Options{
		Endpoint:     cfg.Realtime.Endpoint,
		DialTimeout:  time.Duration(cfg.Realtime.DialTimeoutSeconds) * time.Second,
		ReconnectMin: time.Duration(cfg.Realtime.ReconnectMinMillis) * time.Millisecond,
		ReconnectMax: time.Duration(cfg.Realtime.ReconnectMaxMillis) * time.Millisecond,
	}, tokens)

	// 房间加入协议挂在连接钩子上，每次连接（含重连）都重跑
	joiner := realtime.NewJoiner(rtClient, tokens)
	rtClient.OnConnect(joiner.JoinAll)
	rtClient.On(realtime.EventRoomJoined, joiner.HandleRoomJoined)

	// 7. 初始化 Service (依赖注入)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dedupWindow := time.Duration(cfg.Dedup.WindowMillis) * time.Millisecond
	refreshService := service.NewRefreshService(backendClient, time.Duration(cfg.Refresh.IntervalSeconds)*time.Second)
	alertService := service.NewAlertService(
		ctx,
		cfg.Alerts.BufferCap,
		cfg.Alerts.Sound,
		backendClient,
		notifier,
		notify.BeepPlayer{},
		toasts,
		journalRepo,
		service.NewDeduplicator(dedupWindow),
		refreshService.Trigger,
		ident.UserID,
	)
	sessionService := service.NewSessionService(backendClient, rtClient, service.NewDeduplicator(dedupWindow), ident.UserID)

	// 8. 注册上游事件路由
	rtClient.On(realtime.EventCrisisAlert, alertService.HandleAlertEvent)
	rtClient.On(realtime.EventCrisisAlertLegacy, alertService.HandleAlertEvent)
	rtClient.On(realtime.EventAIResponse, sessionService.HandleAIResponse)
	rtClient.On(realtime.EventNewMessage, sessionService.HandleNewMessage)
	for _, event := range []string{
		realtime.EventStudentActivity,
		realtime.EventAppointmentUpdate,
		realtime.EventAnalyticsUpdate,
		realtime.EventNewAlert,
		realtime.EventNewMessage,
	} {
		rtClient.On(event, refreshService.EventHandler(event))
	}

	// 连接断开转入轮询兜底，同时在 UI 上给出离线提示
	rtClient.OnStateChange(func(state realtime.State) {
		switch state {
		case realtime.StateDisconnected:
			toasts.Publish(notify.NewToast("warning", "实时连接已断开", "已切换到轮询模式", nil))
		case realtime.StateJoined:
			toasts.Publish(notify.NewToast("info", "实时连接已恢复", "", nil))
		}
	})

	// 9. 启动管线
	go rtClient.Run(ctx)
	go refreshService.Run(ctx)

	// 10. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	statusHandler := handler.NewStatusHandler(rtClient, joiner, refreshService)
	alertHandler := handler.NewAlertHandler(alertService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	streamHandler := handler.NewStreamHandler(toasts, rtClient, jwtManager)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(jwtManager))
	{
		apiV1.GET("/status", statusHandler.Status)
		apiV1.GET("/dashboard", statusHandler.Dashboard)
		apiV1.POST("/dashboard/refresh", statusHandler.Refresh)

		alerts := apiV1.Group("/alerts")
		{
			alerts.GET("", alertHandler.Recent)
			alerts.POST("/:id/respond", alertHandler.Respond)
			alerts.POST("/:id/resolve", alertHandler.Resolve)
		}

		sessions := apiV1.Group("/sessions")
		{
			sessions.GET("", sessionHandler.List)
			sessions.GET("/current", sessionHandler.Current)
			sessions.POST("/current/messages", sessionHandler.Send)
			sessions.GET("/:id", sessionHandler.Open)
			sessions.DELETE("/:id", sessionHandler.Delete)
		}

		conversations := apiV1.Group("/conversations")
		{
			conversations.GET("", sessionHandler.Conversations)
			conversations.POST("/:id/messages", sessionHandler.SendDirect)
		}
	}
	// 本地流 (WebSocket)，token 走路径参数
	r.GET("/stream/:token", streamHandler.Handle)

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

	// 取消运行上下文：停掉兜底轮询，并让在途的 REST 刷新随之终止
	cancel()
	rtClient.Close()

	// 设置一个5秒的超时上下文
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
