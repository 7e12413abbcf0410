// @title AI Tutor 后端 API
// @version 1.0
// @description AI学习伴侣的后端服务器：对话辅导、学习信号抽取、进度台账与分析报表。

// @contact.name API支持
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"ai_tutor_backend/internal/app"
	"ai_tutor_backend/internal/config"
	"ai_tutor_backend/pkg/logger"
	"log"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	application.Run()
}
