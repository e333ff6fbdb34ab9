package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/edu-center-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "edu", Password: "secret", Name: "edu_center", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=edu password=secret dbname=edu_center sslmode=disable application_name=edu-center-api", dsn)
}
