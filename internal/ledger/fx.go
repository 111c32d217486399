package ledger

import (
	"github.com/smallbiznis/poolfund/internal/ledger/repository"
	"github.com/smallbiznis/poolfund/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
