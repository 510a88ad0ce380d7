package db_provider

import (
	"database/sql"
	"strings"

	"github.com/golang/glog"

	"github.com/prebid/prebid-request-core/config"
)

// DbProvider knows the connection string and the placeholder syntax of one database driver.
type DbProvider interface {
	// DriverName is the name the driver registered with database/sql.
	DriverName() string
	ConnString(cfg config.DatabaseConnection) string
	// IDList renders numArgs positional placeholders, numbered after the numSoFar already used.
	IDList(numSoFar int, numArgs int) string
}

// NewDbProvider returns the provider of cfg.Driver, or false if the driver is unsupported.
func NewDbProvider(cfg config.DatabaseConnection) (DbProvider, bool) {
	switch cfg.Driver {
	case "mysql":
		return MySqlDbProvider{}, true
	case "postgres", "":
		return PostgresDbProvider{}, true
	}
	return nil, false
}

// Open connects to the configured database and checks that it answers. Connection failures are fatal.
func Open(dataType string, provider DbProvider, cfg config.DatabaseConnection) *sql.DB {
	db, err := sql.Open(provider.DriverName(), provider.ConnString(cfg))
	if err != nil {
		glog.Fatalf("Failed to open %s %s connection: %v", dataType, provider.DriverName(), err)
	}

	if err := db.Ping(); err != nil {
		glog.Fatalf("Failed to ping %s %s: %v", dataType, provider.DriverName(), err)
	}
	return db
}

// MakeQuery builds a query which can fetch numReqs Stored Requests and numImps Stored Imps.
// See the docs on config.DatabaseFetcherQueries.QueryTemplate for a description of how it works.
func MakeQuery(provider DbProvider, template string, numReqs int, numImps int) string {
	numReqs = ensureNonNegative("Request", numReqs)
	numImps = ensureNonNegative("Imp", numImps)

	return strings.NewReplacer(
		"%REQUEST_ID_LIST%", provider.IDList(0, numReqs),
		"%IMP_ID_LIST%", provider.IDList(numReqs, numImps),
		"%ID_LIST%", provider.IDList(0, numReqs),
	).Replace(template)
}

func ensureNonNegative(storedThing string, num int) int {
	if num < 0 {
		glog.Errorf("Can't build a SQL query for %d Stored %ss.", num, storedThing)
		return 0
	}
	return num
}

// An empty list like "()" is illegal SQL. `id IN (NULL)` is valid for every column type and matches nothing.
const emptyIDList = "(NULL)"
