package db_provider

import (
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/prebid/prebid-request-core/config"
)

type MySqlDbProvider struct{}

func (MySqlDbProvider) DriverName() string {
	return "mysql"
}

func (MySqlDbProvider) ConnString(cfg config.DatabaseConnection) string {
	dsn := mysql.NewConfig()
	dsn.User = cfg.Username
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = cfg.Host
	if cfg.Port > 0 {
		dsn.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}
	dsn.DBName = cfg.Database
	return dsn.FormatDSN()
}

// IDList ignores numSoFar since mysql placeholders are not numbered.
func (MySqlDbProvider) IDList(_ int, numArgs int) string {
	if numArgs == 0 {
		return emptyIDList
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", numArgs), ", ") + ")"
}
