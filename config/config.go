package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	// 数据库配置
	DatabaseURL string

	// 服务器配置
	Port       string
	AdminToken string

	// 模拟时钟配置
	MinuteDuration time.Duration // 一个模拟分钟对应的真实时间
	HalfTimeBreak  time.Duration // 中场休息的真实时长
	MinAdditional  int           // 每半场补时下限（分钟）
	MaxAdditional  int           // 每半场补时上限（分钟）

	// 事件生成配置
	BaseEventProbability float64 // 每分钟基础事件概率

	// 会话监控配置
	StaleAfter      time.Duration // 超过该时长无时钟活动的会话视为僵死
	MonitorInterval time.Duration

	// 域通知配置 (AMQP)
	AMQPUrl      string
	AMQPExchange string

	// 比分遥测配置 (MQTT)
	MQTTBroker   string
	MQTTUsername string
	MQTTPassword string

	// 其他配置
	Environment string
}

func Load() *Config {
	return &Config{
		// 数据库配置
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/matchsim?sslmode=disable"),

		// 服务器配置
		Port:       getEnv("PORT", "8080"),
		AdminToken: getEnv("ADMIN_TOKEN", ""),

		// 模拟时钟配置
		MinuteDuration: time.Duration(getEnvInt("MINUTE_DURATION_MS", 2000)) * time.Millisecond,
		HalfTimeBreak:  time.Duration(getEnvInt("HALF_TIME_BREAK_SECONDS", 15)) * time.Second,
		MinAdditional:  getEnvInt("MIN_ADDITIONAL_MINUTES", 1),
		MaxAdditional:  getEnvInt("MAX_ADDITIONAL_MINUTES", 5),

		// 事件生成配置
		BaseEventProbability: getEnvFloat("BASE_EVENT_PROBABILITY", 0.18),

		// 会话监控配置
		StaleAfter:      time.Duration(getEnvInt("STALE_AFTER_SECONDS", 300)) * time.Second,
		MonitorInterval: time.Duration(getEnvInt("MONITOR_INTERVAL_SECONDS", 60)) * time.Second,

		// 域通知配置
		AMQPUrl:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "matchsim.notifications"),

		// 比分遥测配置
		MQTTBroker:   getEnv("MQTT_BROKER", ""),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		// 其他配置
		Environment: getEnv("ENVIRONMENT", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result int
	fmt.Sscanf(value, "%d", &result)
	if result == 0 {
		return defaultValue
	}
	return result
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result float64
	fmt.Sscanf(value, "%f", &result)
	if result == 0 {
		return defaultValue
	}
	return result
}
