package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

// TestLoadConfigWithCorrectMapSyntax map 字段与默认值合并
func TestLoadConfigWithCorrectMapSyntax(t *testing.T) {
	configPath := writeTempConfig(t, `
rabbitmq:
  url: "amqp://guest:guest@mq:5672/"
  prefetch_count: 20
  consumer_workers:
    cv_uploaded: 5
ai:
  model: "gpt-4o-mini"
  task_models:
    ranking: "gpt-4o"
matching:
  max_ai_posts: 15
  cache_ttl: "5m"
`)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err, "加载具有正确语法的配置不应返回错误")
	require.NotNil(t, cfg)

	assert.Equal(t, 5, cfg.RabbitMQ.ConsumerWorkers["cv_uploaded"])
	assert.Equal(t, 1, cfg.RabbitMQ.ConsumerWorkers["company_registered"], "未覆盖的键保留默认值")
	assert.Equal(t, 20, cfg.RabbitMQ.PrefetchCount)
	assert.Equal(t, "amqp://guest:guest@mq:5672/", cfg.RabbitMQ.URL)

	assert.Equal(t, "gpt-4o", cfg.GetModelForTask("ranking"))
	assert.Equal(t, "gpt-4o-mini", cfg.GetModelForTask("chat"))

	assert.Equal(t, 15, cfg.Matching.MaxAIPosts)
	assert.Equal(t, 5*time.Minute, GetDuration(cfg.Matching.CacheTTL, time.Minute))
	// 未出现在文件中的段使用默认值
	assert.Equal(t, "cvs", cfg.MinIO.CVBucket)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
}

// TestLoadConfigWithIncorrectMapSyntax YAML 缩进错误时 map 字段为空
func TestLoadConfigWithIncorrectMapSyntax(t *testing.T) {
	configPath := writeTempConfig(t, `
rabbitmq:
  prefetch_count: 10
  consumer_workers: # map类型
  cv_uploaded: 5
`)

	cfg, err := LoadConfig(configPath)
	// go-yaml/v3 不会报错，consumer_workers 被解析为 null
	require.NoError(t, err, "加载语法错误的配置也不应立即报错")
	require.NotNil(t, cfg)
	assert.Empty(t, cfg.RabbitMQ.ConsumerWorkers, "由于缩进错误，ConsumerWorkers map 应该是空的")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("JOBOOK_AI_API_KEY", "sk-test")
	t.Setenv("JOBOOK_MYSQL_PORT", "3307")
	t.Setenv("JOBOOK_TRACING_ENABLED", "true")
	configPath := writeTempConfig(t, `
mysql:
  host: db
  port: 3306
ai:
  api_key: "from-file"
`)

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, 3307, cfg.MySQL.Port)
	assert.Equal(t, "db", cfg.MySQL.Host)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, GetDuration("3s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("soon", time.Minute))
}

func TestCreateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))
	assert.Error(t, CreateSampleConfig(path), "已存在的文件不应被覆盖")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "jobook", cfg.MySQL.Database)
}
