package db

import (
	"testing"

	"github.com/shinyyama/simcard-market/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	base := config.Config{DBUser: "u", DBPassword: "p", DBName: "market", DBPort: "3306"}
	tests := []struct {
		name     string
		host     string
		instance string
		wantAddr string
	}{
		{"plain host", "db.local", "", "tcp(db.local:3306)"},
		{"already tcp", "tcp(10.0.0.1:3307)", "", "tcp(10.0.0.1:3307)"},
		{"socket path", "/var/run/mysqld.sock", "", "unix(/var/run/mysqld.sock)"},
		{"cloud sql", "ignored", "proj:region:inst", "unix(/cloudsql/proj:region:inst)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.DBHost = tt.host
			cfg.InstanceConnectionName = tt.instance
			assert.Equal(t, "u:p@"+tt.wantAddr+"/market?charset=utf8mb4&parseTime=True&loc=UTC", BuildDSN(&cfg))
		})
	}
}
