package storage

import (
	"context"
	"fmt"

	"jobook/internal/config"

	"github.com/rs/zerolog"
)

// Storage 聚合 MySQL、Redis、MinIO、RabbitMQ
type Storage struct {
	MySQL    *MySQL
	Redis    *Redis
	MinIO    *MinIO
	RabbitMQ *RabbitMQ

	logger zerolog.Logger
}

// NewStorage 依次初始化全部存储组件，任一失败即关闭已建立的连接并返回错误
func NewStorage(ctx context.Context, cfg *config.Config, migrate bool, logger zerolog.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	s := &Storage{logger: logger.With().Str("component", "storage").Logger()}

	var err error
	if s.MySQL, err = NewMySQL(&cfg.MySQL, migrate); err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}
	s.logger.Info().Str("host", cfg.MySQL.Host).Bool("migrated", migrate).Msg("MySQL 已连接")

	if s.Redis, err = NewRedisAdapter(&cfg.Redis); err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化Redis失败: %w", err)
	}
	s.logger.Info().Str("address", cfg.Redis.Address).Msg("Redis 已连接")

	if s.MinIO, err = NewMinIO(&cfg.MinIO, logger); err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化MinIO失败: %w", err)
	}

	if s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ, logger); err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化RabbitMQ失败: %w", err)
	}
	if err := s.RabbitMQ.DeclareTopology(); err != nil {
		s.Close()
		return nil, fmt.Errorf("声明RabbitMQ拓扑失败: %w", err)
	}
	s.logger.Info().Msg("RabbitMQ 已连接")

	if err := ctx.Err(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
