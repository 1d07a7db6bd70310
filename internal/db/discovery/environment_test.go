package discovery

import (
	"testing"

	"github.com/0xataru/dfox/internal/models"
	"github.com/stretchr/testify/assert"
)

func envMap(m map[string]string) Getenv {
	return func(k string) string { return m[k] }
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name      string
		engine    models.EngineKind
		env       map[string]string
		want      models.ConnectionParams
		wantFound bool
	}{
		{
			name:   "postgres defaults",
			engine: models.Postgres,
			want:   models.ConnectionParams{Host: "localhost", Port: 5432, Username: "postgres"},
		},
		{
			name:   "postgres variables",
			engine: models.Postgres,
			env: map[string]string{
				"PGHOST": "db.internal", "PGPORT": "6432", "PGUSER": "app",
				"PGPASSWORD": "pw", "PGDATABASE": "app_db",
			},
			want:      models.ConnectionParams{Host: "db.internal", Port: 6432, Username: "app", Secret: "pw", Database: "app_db"},
			wantFound: true,
		},
		{
			name:   "invalid port is ignored",
			engine: models.Postgres,
			env:    map[string]string{"PGPORT": "99999"},
			want:   models.ConnectionParams{Host: "localhost", Port: 5432, Username: "postgres"},
		},
		{
			name:      "mysql variables",
			engine:    models.MySQL,
			env:       map[string]string{"MYSQL_HOST": "127.0.0.1", "MYSQL_PWD": "pw", "PGHOST": "ignored"},
			want:      models.ConnectionParams{Host: "127.0.0.1", Port: 3306, Username: "root", Secret: "pw"},
			wantFound: true,
		},
		{
			name:      "sqlite path",
			engine:    models.SQLite,
			env:       map[string]string{"DFOX_SQLITE_PATH": "/var/data/app.db"},
			want:      models.ConnectionParams{Host: "/var/data/app.db"},
			wantFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := FromEnv(tt.engine, envMap(tt.env))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}
