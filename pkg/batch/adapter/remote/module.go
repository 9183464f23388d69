package remote

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
	"github.com/tigerroll/lockxfer/pkg/batch/core/tx"
)

// ConnectorParams defines the dependencies for NewConnectorFromConfig.
type ConnectorParams struct {
	fx.In
	DBResolver database.DBConnectionResolver
	TxFactory  tx.TransactionManagerFactory
	Cfg        *config.TransferConfig
}

// NewConnectorFromConfig opens gateways on transfer.remote_connection. The connection
// is resolved once so that a misconfigured name fails at start-up.
func NewConnectorFromConfig(p ConnectorParams) (Connector, error) {
	conn, err := p.DBResolver.ResolveDBConnection(context.Background(), p.Cfg.RemoteConnection)
	if err != nil {
		return nil, fmt.Errorf("remote connection '%s': %w", p.Cfg.RemoteConnection, err)
	}
	return NewSQLConnector(p.TxFactory.NewTransactionManager(conn)), nil
}

// Module provides the remote Connector.
var Module = fx.Options(
	fx.Provide(NewConnectorFromConfig),
)
