//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"moderation/internal/biz"
	"moderation/internal/conf"
	"moderation/internal/data"
	"moderation/internal/server"
	"moderation/internal/service"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.Moderation, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, biz.ProviderSet, service.ProviderSet, newApp))
}

// wireSweeper builds the moderation usecase alone, for one-off sweeps.
func wireSweeper(*conf.Data, *conf.Moderation, log.Logger) (*biz.ModerationUsecase, func(), error) {
	panic(wire.Build(data.ProviderSet, biz.ProviderSet))
}
