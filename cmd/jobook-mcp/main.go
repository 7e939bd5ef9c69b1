package main

import (
	"os"

	"jobook/internal/constants"
	appLogger "jobook/internal/logger"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/pflag"
)

var version = "1.0.0" //nolint:gochecknoglobals

// jobook-mcp 通过 stdio 暴露离线匹配能力：信号抽取、搜索语解析、兜底评分
func main() {
	var level string
	pflag.StringVar(&level, "log-level", "info", "Log level (logs go to stderr)")
	pflag.Parse()

	// stdout 留给 MCP 协议
	logger := appLogger.New(appLogger.Config{Level: level}, os.Stderr).
		With().Str("service", constants.AppName+"-mcp").Logger()

	s := server.NewMCPServer(constants.AppName, version)
	registerTools(s, logger)

	logger.Info().Msg("MCP server listening on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Error().Err(err).Msg("MCP server error")
		os.Exit(1)
	}
}
