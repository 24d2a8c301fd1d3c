package main

import (
	"log"

	"matchsim-service/config"
	"matchsim-service/database"
)

// 独立的数据库迁移入口，部署脚本在启动服务前运行
func main() {
	log.Println("Running database migrations...")

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully")
}
