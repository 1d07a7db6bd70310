// Package discovery derives connection form defaults from the environment
// variables each engine's own command line tools honour.
package discovery

import (
	"os"
	"strconv"

	"github.com/0xataru/dfox/internal/models"
)

// Getenv looks up an environment variable
type Getenv func(string) string

type envNames struct {
	host, port, user, secret, database string
}

var engineEnv = map[models.EngineKind]envNames{
	models.Postgres: {host: "PGHOST", port: "PGPORT", user: "PGUSER", secret: "PGPASSWORD", database: "PGDATABASE"},
	models.MySQL:    {host: "MYSQL_HOST", port: "MYSQL_TCP_PORT", user: "MYSQL_USER", secret: "MYSQL_PWD", database: "MYSQL_DATABASE"},
	models.SQLite:   {host: "DFOX_SQLITE_PATH"},
}

// Environment returns form defaults for engine from the process environment
func Environment(engine models.EngineKind) (models.ConnectionParams, bool) {
	return FromEnv(engine, os.Getenv)
}

// FromEnv returns form defaults for engine. The bool is false when none of
// the engine's variables are set; the params then hold plain defaults.
func FromEnv(engine models.EngineKind, getenv Getenv) (models.ConnectionParams, bool) {
	params := Defaults(engine)
	names, ok := engineEnv[engine]
	if !ok {
		return params, false
	}

	found := false
	set := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := getenv(name); v != "" {
			*dst = v
			found = true
		}
	}

	set(names.host, &params.Host)
	set(names.user, &params.Username)
	set(names.secret, &params.Secret)
	set(names.database, &params.Database)

	if names.port != "" {
		if v := getenv(names.port); v != "" {
			if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
				params.Port = p
				found = true
			}
		}
	}

	return params, found
}

// Defaults returns the form values used when nothing better is known
func Defaults(engine models.EngineKind) models.ConnectionParams {
	switch engine {
	case models.Postgres:
		return models.ConnectionParams{Host: "localhost", Port: engine.DefaultPort(), Username: "postgres"}
	case models.MySQL:
		return models.ConnectionParams{Host: "localhost", Port: engine.DefaultPort(), Username: "root"}
	default:
		return models.ConnectionParams{}
	}
}
