//go:build integration

package client

import (
	"context"
	"log"
	"path/filepath"
	"testing"

	"github.com/0xataru/dfox/internal/db/dberr"
	"github.com/0xataru/dfox/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tsuite "github.com/stretchr/testify/suite"
	tc "github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
)

// MySQLClientSuite runs the mysql client against a real server
type MySQLClientSuite struct {
	tsuite.Suite
	ctx    context.Context
	ctr    *tcmysql.MySQLContainer
	params models.ConnectionParams
}

func TestMySQLClientSuite(t *testing.T) {
	tsuite.Run(t, new(MySQLClientSuite))
}

func (suite *MySQLClientSuite) SetupSuite() {
	suite.ctx = context.Background()

	seed, err := filepath.Abs(filepath.Join("testdata", "mysql_seed.sql"))
	if err != nil {
		log.Fatal(err)
	}

	ctr, err := tcmysql.Run(
		suite.ctx,
		"mysql:8.0.36",
		tcmysql.WithDatabase("app_db"),
		tcmysql.WithUsername("root"),
		tcmysql.WithPassword("password"),
		tcmysql.WithScripts(seed),
	)
	if err != nil {
		log.Fatal(err)
	}
	suite.ctr = ctr

	host, err := ctr.Host(suite.ctx)
	if err != nil {
		log.Fatal(err)
	}
	port, err := ctr.MappedPort(suite.ctx, "3306/tcp")
	if err != nil {
		log.Fatal(err)
	}

	suite.params = models.ConnectionParams{
		Host:     host,
		Port:     port.Int(),
		Username: "root",
		Secret:   "password",
		Database: "app_db",
	}
}

func (suite *MySQLClientSuite) TearDownSuite() {
	tc.CleanupContainer(suite.T(), suite.ctr)
}

func (suite *MySQLClientSuite) TestBrowse() {
	t := suite.T()

	c, err := Connect(suite.ctx, models.MySQL, suite.params)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	dbs, err := c.ListDatabases(suite.ctx)
	require.NoError(t, err)
	assert.Contains(t, dbs, models.DatabaseSummary{Name: "test_db"})

	tables, err := c.ListTables(suite.ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.TableSummary{
		{Name: "orders", Kind: "table"},
		{Name: "users", Kind: "table"},
	}, tables)

	schema, err := c.DescribeTable(suite.ctx, "orders")
	require.NoError(t, err)
	require.Len(t, schema.Columns, 3)
	assert.Equal(t, "id", schema.Columns[0].Name)
	assert.True(t, schema.Columns[0].IsPrimaryKey)
	assert.True(t, schema.Columns[1].IsForeignKey)
	assert.True(t, schema.Columns[2].IsNullable)

	require.NoError(t, c.UseDatabase(suite.ctx, "test_db"))
	tables, err = c.ListTables(suite.ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func (suite *MySQLClientSuite) TestErrors() {
	t := suite.T()

	c, err := Connect(suite.ctx, models.MySQL, suite.params)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, err = c.ExecuteQuery(suite.ctx, "SELECT * FRM users")
	kind, _ := dberr.QueryKindOf(err)
	assert.Equal(t, dberr.Syntax, kind)

	params := suite.params
	params.Secret = "wrong"
	_, err = Connect(suite.ctx, models.MySQL, params)
	ckind, ok := dberr.ConnectKindOf(err)
	require.True(t, ok)
	assert.Equal(t, dberr.AuthRejected, ckind)
}
