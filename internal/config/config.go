// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	SMTP          SMTPConfig          `mapstructure:"smtp"`
	Quota         QuotaConfig         `mapstructure:"quota"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Filter        FilterConfig        `mapstructure:"filter"`
	Bootstrap     BootstrapConfig     `mapstructure:"bootstrap"`
}

// BootstrapConfig 存储首次启动时的种子数据。
// 管理员集合在运行时由管理接口维护，这里只保证初始管理员存在。
type BootstrapConfig struct {
	Admins []string `mapstructure:"admins"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// SMTPConfig 存储验证码邮件投递的配置。
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	Subject  string `mapstructure:"subject"`
}

// QuotaConfig 存储每日配额相关的配置。
type QuotaConfig struct {
	DailyLimit int `mapstructure:"daily_limit"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey            string              `mapstructure:"api_key"`
	Model             string              `mapstructure:"model"`
	SystemInstruction string              `mapstructure:"system_instruction"`
	TimeoutSeconds    int                 `mapstructure:"timeout_seconds"`
	Generation        LLMGenerationConfig `mapstructure:"generation"`
	Prompt            LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置检索上下文的包裹格式（可选）。
type LLMPromptConfig struct {
	RefStart string `mapstructure:"ref_start"`
	RefEnd   string `mapstructure:"ref_end"`
	TopK     int    `mapstructure:"top_k"`
}

// IngestConfig 存储导入管道相关的配置。
type IngestConfig struct {
	MaxChunkSize       int    `mapstructure:"max_chunk_size"`
	OverlapChars       int    `mapstructure:"overlap_chars"`
	BatchSize          int    `mapstructure:"batch_size"`
	BatchDelayMillis   int    `mapstructure:"batch_delay_millis"`
	SourceArchive      bool   `mapstructure:"source_archive"`
	DefaultSourceDir   string `mapstructure:"default_source_dir"`
	RecursiveByDefault bool   `mapstructure:"recursive_by_default"`
}

// FilterConfig 存储内容过滤相关的配置。
type FilterConfig struct {
	Patterns        []string `mapstructure:"patterns"`
	RedirectMessage string   `mapstructure:"redirect_message"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}
