package transaction

import (
	"github.com/smallbiznis/poolfund/internal/transaction/repository"
	"github.com/smallbiznis/poolfund/internal/transaction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transaction.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
