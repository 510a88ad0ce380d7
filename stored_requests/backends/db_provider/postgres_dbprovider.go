package db_provider

import (
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"github.com/prebid/prebid-request-core/config"
)

type PostgresDbProvider struct{}

func (PostgresDbProvider) DriverName() string {
	return "postgres"
}

// ConnString renders a lib/pq keyword/value connection string.
func (PostgresDbProvider) ConnString(cfg config.DatabaseConnection) string {
	var params []string

	if cfg.Host != "" {
		params = append(params, "host="+cfg.Host)
	}
	if cfg.Port > 0 {
		params = append(params, "port="+strconv.Itoa(cfg.Port))
	}
	if cfg.Username != "" {
		params = append(params, "user="+cfg.Username)
	}
	if cfg.Password != "" {
		params = append(params, "password="+cfg.Password)
	}
	if cfg.Database != "" {
		params = append(params, "dbname="+cfg.Database)
	}

	return strings.Join(append(params, "sslmode=disable"), " ")
}

func (PostgresDbProvider) IDList(numSoFar int, numArgs int) string {
	if numArgs == 0 {
		return emptyIDList
	}

	placeholders := make([]string, numArgs)
	for i := range placeholders {
		placeholders[i] = "$" + strconv.Itoa(numSoFar+i+1)
	}
	return "(" + strings.Join(placeholders, ", ") + ")"
}
