package config

import "time"

type Config struct {
	Remote    Remote
	DB        DB
	Auth      Auth
	Principal Principal
	Report    Report
}

// Remote configures access to the hosted row store.
type Remote struct {
	Driver   string        `conf:"default:postgrest,help:postgrest or postgres"`
	URL      string        `conf:"default:http://localhost:54321/rest/v1"`
	APIKey   string        `conf:"mask"`
	Timeout  time.Duration `conf:"default:10s"`
	LimitRPS float64       `conf:"default:10"`
	Burst    int           `conf:"default:20"`
}

// DB configures the direct connection used by self-hosted deployments.
type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:edtech"`
	DisableTLS bool   `conf:"default:true"`
}

// Auth points at the external identity provider that issues the
// platform's tokens.
type Auth struct {
	IssuerURL        string
	ClientID         string
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	IDToken          string        `conf:"mask,help:raw ID token to authenticate as"`
}

// Principal identifies the operator running the report tool. Remote
// row-level security decides what that identity can actually see.
type Principal struct {
	ID    string
	Email string
}

type Report struct {
	Months int `conf:"default:6"`
	Recent int `conf:"default:5"`
}
