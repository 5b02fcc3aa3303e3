package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/gridsettle/tributary/internal/clock"
	"github.com/gridsettle/tributary/internal/config"
	"github.com/gridsettle/tributary/internal/migration"
	"github.com/gridsettle/tributary/internal/observability"
	"github.com/gridsettle/tributary/internal/server"
	"github.com/gridsettle/tributary/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
