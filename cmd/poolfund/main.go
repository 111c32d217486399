package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/poolfund/internal/clock"
	"github.com/smallbiznis/poolfund/internal/config"
	"github.com/smallbiznis/poolfund/internal/migration"
	"github.com/smallbiznis/poolfund/internal/observability"
	"github.com/smallbiznis/poolfund/internal/server"
	"github.com/smallbiznis/poolfund/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
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
