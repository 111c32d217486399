package client

import (
	"github.com/smallbiznis/poolfund/internal/client/repository"
	"github.com/smallbiznis/poolfund/internal/client/service"
	"go.uber.org/fx"
)

var Module = fx.Module("client.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
