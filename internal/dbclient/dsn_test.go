package dbclient

import (
	"strings"
	"testing"
	"time"
)

func TestBuildMySQLDSN(t *testing.T) {
	dsn := buildMySQLDSN(Config{Host: "db", Username: "etl", Password: "pw", Database: "banks"})
	if !strings.HasPrefix(dsn, "etl:pw@tcp(db:3306)/banks?") {
		t.Errorf("dsn: %q", dsn)
	}
	if strings.Contains(dsn, "sql_mode") {
		t.Errorf("dsn should keep the server sql_mode: %q", dsn)
	}
	if strings.Contains(dsn, "tls=") {
		t.Errorf("tls should be off by default: %q", dsn)
	}

	tls := buildMySQLDSN(Config{Host: "db", Port: 3307, SSLMode: "require"})
	if !strings.Contains(tls, "tcp(db:3307)") || !strings.HasSuffix(tls, "&tls=true") {
		t.Errorf("dsn: %q", tls)
	}
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn := buildPostgresDSN(Config{Host: "db", Username: "etl", Password: "pw", Database: "banks"})
	want := "host=db port=5432 user=etl password=pw dbname=banks sslmode=disable"
	if dsn != want {
		t.Errorf("got %q, want %q", dsn, want)
	}
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC)
	cases := []struct {
		in, want any
	}{
		{nil, nil},
		{[]byte("HSBC"), "HSBC"},
		{ts, "2024-05-01T13:04:05Z"},
		{int32(7), int64(7)},
		{float32(0.5), float64(0.5)},
		{"x", "x"},
	}
	for _, c := range cases {
		if got := formatValue(c.in); got != c.want {
			t.Errorf("formatValue(%v) = %v (%T), want %v", c.in, got, got, c.want)
		}
	}
}
