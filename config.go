package acme

import "fmt"

const (
	// ConfigScope is the secure store scope the TOML configuration is saved under.
	ConfigScope = "acme_config"

	LetsEncryptProduction = "https://acme-v02.api.letsencrypt.org/directory"
	LetsEncryptStaging    = "https://acme-staging-v02.api.letsencrypt.org/directory"
)

// Config is the root of the certificate management configuration. A Config
// that passed Validate is treated as an immutable snapshot; derive a new
// version with Clone instead of editing a published one.
type Config struct {
	// RenewalCheckTime is the time of day the renewal scheduler runs.
	RenewalCheckTime *TimeOfDay
	Accounts         map[string]*Account
}

// Account is an ACME account and the certificates obtained through it.
type Account struct {
	Enabled              bool
	ProviderURL          string // ACME directory URL
	AcceptedAgreementURL string
	ContactURIs          []string
	// MinimumValidityDays is the remaining validity below which a
	// certificate is renewed.
	MinimumValidityDays int
	Certificates        map[string]*Certificate
}

// Certificate describes one certificate to obtain. Hostnames[0] is the
// primary hostname (common name).
type Certificate struct {
	Enabled      bool
	DefaultCert  bool
	Organization string
	Hostnames    []string
}

// CertificateRef names a certificate within a Config.
type CertificateRef struct {
	Account     string
	Certificate string
}

func (r CertificateRef) String() string {
	return fmt.Sprintf("account %s certificate %s", r.Account, r.Certificate)
}

// CertificateEntry is a certificate together with the account that owns it.
type CertificateEntry struct {
	Ref         CertificateRef
	Account     *Account
	Certificate *Certificate
}

// NewConfig returns an empty configuration checking for renewals at t.
func NewConfig(t TimeOfDay) *Config {
	return &Config{
		RenewalCheckTime: &t,
		Accounts:         make(map[string]*Account),
	}
}

// NewAccount returns an enabled account with no certificates.
func NewAccount(providerURL string, minimumValidityDays int, contactURIs ...string) *Account {
	return &Account{
		Enabled:             true,
		ProviderURL:         providerURL,
		ContactURIs:         contactURIs,
		MinimumValidityDays: minimumValidityDays,
		Certificates:        make(map[string]*Certificate),
	}
}

// NewCertificate returns an enabled, non-default certificate.
func NewCertificate(organization string, hostnames ...string) *Certificate {
	return &Certificate{
		Enabled:      true,
		Organization: organization,
		Hostnames:    hostnames,
	}
}

// EquivalentTo reports whether c and other describe the same certificate
// for issuance purposes. Flags and organization must match exactly, the
// primary hostname must match, and the remaining hostnames are compared as
// a set. It is weaker than structural equality.
func (c *Certificate) EquivalentTo(other *Certificate) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Enabled == other.Enabled &&
		c.DefaultCert == other.DefaultCert &&
		c.Organization == other.Organization &&
		HostnamesEquivalent(c.Hostnames, other.Hostnames)
}

// PrimaryHostname returns the first hostname, or "" if there is none.
func (c *Certificate) PrimaryHostname() string {
	if len(c.Hostnames) == 0 {
		return ""
	}
	return c.Hostnames[0]
}

// EnabledCertificates flattens the enabled subtree: enabled certificates of
// enabled accounts, ordered by account then certificate name. Nil entries
// are skipped. A nil Config has no entries.
func (c *Config) EnabledCertificates() []CertificateEntry {
	if c == nil {
		return nil
	}
	var entries []CertificateEntry
	for _, accountName := range sortedKeys(c.Accounts) {
		account := c.Accounts[accountName]
		if account == nil || !account.Enabled {
			continue
		}
		for _, certName := range sortedKeys(account.Certificates) {
			cert := account.Certificates[certName]
			if cert == nil || !cert.Enabled {
				continue
			}
			entries = append(entries, CertificateEntry{
				Ref:         CertificateRef{Account: accountName, Certificate: certName},
				Account:     account,
				Certificate: cert,
			})
		}
	}
	return entries
}
