package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coinflow/internal/config"
	"github.com/smallbiznis/coinflow/internal/logger"
	"github.com/smallbiznis/coinflow/internal/migration"
	"github.com/smallbiznis/coinflow/internal/server"
	"github.com/smallbiznis/coinflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
