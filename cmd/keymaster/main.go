package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/keymasterhq/keymaster/internal/clock"
	"github.com/keymasterhq/keymaster/internal/config"
	"github.com/keymasterhq/keymaster/internal/migration"
	"github.com/keymasterhq/keymaster/internal/observability"
	"github.com/keymasterhq/keymaster/internal/seed"
	"github.com/keymasterhq/keymaster/internal/server"
	"github.com/keymasterhq/keymaster/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		seed.Module,
	)
	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
