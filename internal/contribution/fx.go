package contribution

import (
	"github.com/smallbiznis/poolfund/internal/contribution/repository"
	"github.com/smallbiznis/poolfund/internal/contribution/service"
	"go.uber.org/fx"
)

var Module = fx.Module("contribution.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
