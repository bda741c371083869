// Package all registers every built-in storage backend.
package all

import (
	_ "airbnbdash/internal/storage/mssql"
	_ "airbnbdash/internal/storage/mysql"
	_ "airbnbdash/internal/storage/postgres"
	_ "airbnbdash/internal/storage/sqlite"
)
