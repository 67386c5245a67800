// Package tomlconf reads and writes the ACME configuration as TOML.
//
// Decoding builds an acme.Config but does not validate it; callers run
// Validate before publishing the result.
package tomlconf

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/caasmo/acmeconfig"
)

type fileConfig struct {
	// RenewalCheckTime holds a toml.LocalTime. As an interface it encodes
	// as a TOML local time instead of a quoted string.
	RenewalCheckTime any                     `toml:"renewal_check_time,omitempty" comment:"Time of day the renewal check runs"`
	Accounts         map[string]*fileAccount `toml:"accounts"`
}

type fileAccount struct {
	Enabled              *bool                       `toml:"enabled,omitempty" comment:"Defaults to true"`
	ProviderURL          string                      `toml:"provider_url" comment:"ACME directory URL"`
	AcceptedAgreementURL string                      `toml:"accepted_agreement_url,omitempty" comment:"Terms of service accepted for this account"`
	ContactURIs          []string                    `toml:"contact_uris,omitempty"`
	MinimumValidityDays  int                         `toml:"minimum_validity_days" comment:"Renew when fewer days of validity remain"`
	Certificates         map[string]*fileCertificate `toml:"certificates"`
}

type fileCertificate struct {
	Enabled      *bool    `toml:"enabled,omitempty" comment:"Defaults to true"`
	DefaultCert  bool     `toml:"default_cert"`
	Organization string   `toml:"organization"`
	Hostnames    []string `toml:"hostnames" comment:"The first hostname is the common name"`
}

// Decode parses a TOML document. Keys that do not belong to the schema are
// rejected. An absent enabled key means enabled. An empty accounts or
// certificates table decodes to an empty map, an absent one to nil.
func Decode(data []byte) (*acme.Config, error) {
	var fc fileConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return nil, decodeError(err)
	}
	if err := fc.markPresentTables(data); err != nil {
		return nil, decodeError(err)
	}
	return fc.toConfig()
}

// Load reads and decodes the file at path.
func Load(path string) (*acme.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tomlconf: read %s: %w", path, err)
	}
	cfg, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes cfg as TOML. Every enabled flag is written out. Nil maps
// are left out and empty ones are written as empty tables, so Decode
// restores the same shape.
func Marshal(cfg *acme.Config) ([]byte, error) {
	b, err := toml.Marshal(fromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("tomlconf: marshal: %w", err)
	}
	return b, nil
}

func decodeError(err error) error {
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		row, col := derr.Position()
		return fmt.Errorf("tomlconf: line %d column %d: %w", row, col, err)
	}
	var serr *toml.StrictMissingError
	if errors.As(err, &serr) {
		return fmt.Errorf("tomlconf: unknown keys: %w\n%s", err, serr.String())
	}
	return fmt.Errorf("tomlconf: %w", err)
}

// markPresentTables allocates the maps and entries of tables that appear in
// data but were left nil by the typed decode because they had no keys.
func (fc *fileConfig) markPresentTables(data []byte) error {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return err
	}
	accounts, ok := raw["accounts"].(map[string]any)
	if !ok {
		return nil
	}
	if fc.Accounts == nil {
		fc.Accounts = make(map[string]*fileAccount, len(accounts))
	}
	for name, v := range accounts {
		account, ok := v.(map[string]any)
		if !ok {
			continue
		}
		fa := fc.Accounts[name]
		if fa == nil {
			fa = &fileAccount{}
			fc.Accounts[name] = fa
		}
		certs, ok := account["certificates"].(map[string]any)
		if !ok {
			continue
		}
		if fa.Certificates == nil {
			fa.Certificates = make(map[string]*fileCertificate, len(certs))
		}
		for certName, cv := range certs {
			if _, ok := cv.(map[string]any); ok && fa.Certificates[certName] == nil {
				fa.Certificates[certName] = &fileCertificate{}
			}
		}
	}
	return nil
}

func (fc *fileConfig) toConfig() (*acme.Config, error) {
	cfg := &acme.Config{}
	t, err := timeOfDay(fc.RenewalCheckTime)
	if err != nil {
		return nil, err
	}
	cfg.RenewalCheckTime = t
	if fc.Accounts != nil {
		cfg.Accounts = make(map[string]*acme.Account, len(fc.Accounts))
		for name, fa := range fc.Accounts {
			cfg.Accounts[name] = fa.toAccount()
		}
	}
	return cfg, nil
}

// timeOfDay converts a decoded renewal_check_time. Only whole seconds are
// accepted.
func timeOfDay(v any) (*acme.TimeOfDay, error) {
	if v == nil {
		return nil, nil
	}
	lt, ok := v.(toml.LocalTime)
	if !ok {
		return nil, fmt.Errorf("tomlconf: renewal_check_time must be a local time such as 03:30:00, got %T", v)
	}
	if lt.Nanosecond != 0 {
		return nil, fmt.Errorf("tomlconf: renewal_check_time %s: fractional seconds are not supported", lt)
	}
	return &acme.TimeOfDay{Hour: lt.Hour, Minute: lt.Minute, Second: lt.Second}, nil
}

func (fa *fileAccount) toAccount() *acme.Account {
	if fa == nil {
		return nil
	}
	a := &acme.Account{
		Enabled:              enabled(fa.Enabled),
		ProviderURL:          fa.ProviderURL,
		AcceptedAgreementURL: fa.AcceptedAgreementURL,
		ContactURIs:          fa.ContactURIs,
		MinimumValidityDays:  fa.MinimumValidityDays,
	}
	if fa.Certificates != nil {
		a.Certificates = make(map[string]*acme.Certificate, len(fa.Certificates))
		for name, fcert := range fa.Certificates {
			a.Certificates[name] = fcert.toCertificate()
		}
	}
	return a
}

func (fcert *fileCertificate) toCertificate() *acme.Certificate {
	if fcert == nil {
		return nil
	}
	return &acme.Certificate{
		Enabled:      enabled(fcert.Enabled),
		DefaultCert:  fcert.DefaultCert,
		Organization: fcert.Organization,
		Hostnames:    fcert.Hostnames,
	}
}

func enabled(b *bool) bool {
	return b == nil || *b
}

func fromConfig(cfg *acme.Config) *fileConfig {
	fc := &fileConfig{}
	if t := cfg.RenewalCheckTime; t != nil {
		fc.RenewalCheckTime = toml.LocalTime{Hour: t.Hour, Minute: t.Minute, Second: t.Second}
	}
	if cfg.Accounts != nil {
		fc.Accounts = make(map[string]*fileAccount, len(cfg.Accounts))
	}
	for name, a := range cfg.Accounts {
		if a == nil {
			continue
		}
		fa := &fileAccount{
			Enabled:              &a.Enabled,
			ProviderURL:          a.ProviderURL,
			AcceptedAgreementURL: a.AcceptedAgreementURL,
			ContactURIs:          a.ContactURIs,
			MinimumValidityDays:  a.MinimumValidityDays,
		}
		if a.Certificates != nil {
			fa.Certificates = make(map[string]*fileCertificate, len(a.Certificates))
		}
		for certName, c := range a.Certificates {
			if c == nil {
				continue
			}
			fa.Certificates[certName] = &fileCertificate{
				Enabled:      &c.Enabled,
				DefaultCert:  c.DefaultCert,
				Organization: c.Organization,
				Hostnames:    c.Hostnames,
			}
		}
		fc.Accounts[name] = fa
	}
	return fc
}
