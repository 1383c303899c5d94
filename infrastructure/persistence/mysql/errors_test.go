package mysql

import (
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{gorm.ErrDuplicatedKey, true},
		{fmt.Errorf("insert order: %w", &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry 'ORD-1'"}), true},
		{&mysqlDriver.MySQLError{Number: 1213}, false},
		{errors.New("UNIQUE constraint failed: orders.order_number"), true},
		{errors.New("no such table: orders"), false},
	}
	for _, c := range cases {
		if got := isDuplicateKeyError(c.err); got != c.want {
			t.Errorf("isDuplicateKeyError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestDSN(t *testing.T) {
	c := &Config{Host: "db", Port: "3306", Username: "order", Password: "p@ss", Database: "ordercore"}
	dsn := c.DSN()

	parsed, err := mysqlDriver.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if parsed.Addr != "db:3306" || parsed.User != "order" || parsed.Passwd != "p@ss" || parsed.DBName != "ordercore" {
		t.Errorf("round trip mismatch: %+v", parsed)
	}
	if !parsed.ParseTime || parsed.Loc.String() != "UTC" {
		t.Errorf("timestamps must be parsed as UTC: parseTime=%v loc=%v", parsed.ParseTime, parsed.Loc)
	}
}
