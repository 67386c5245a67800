package acme

import (
	"maps"
	"slices"
)

// Validate checks the whole configuration. Local checks run first, account
// by account in name order, and the first failure is returned. Then the
// enabled subtree is checked for hostnames shared between certificates and
// for more than one default certificate; those errors name every offender.
// Validate never modifies c.
func (c *Config) Validate() error {
	if c.RenewalCheckTime == nil {
		return &MissingFieldError{Field: "renewal_check_time"}
	}
	if !c.RenewalCheckTime.Valid() {
		return &InvalidValueError{
			Field:  "renewal_check_time",
			Value:  *c.RenewalCheckTime,
			Reason: "must be a time of day between 00:00:00 and 23:59:59",
		}
	}
	if c.Accounts == nil {
		return &MissingFieldError{Field: "accounts"}
	}

	for _, name := range sortedKeys(c.Accounts) {
		account := c.Accounts[name]
		if account == nil {
			return &MissingFieldError{Path: "accounts", Field: name}
		}
		if err := account.Validate(); err != nil {
			return within(err, "accounts."+name)
		}
	}

	entries := c.EnabledCertificates()
	if dups := duplicateHostnames(entries); len(dups) > 0 {
		return &DuplicateHostnameError{Hostnames: dups}
	}
	if defaults := defaultCertificates(entries); len(defaults) > 1 {
		return &MultipleDefaultCertificatesError{Certificates: defaults}
	}
	return nil
}

// Validate checks the account and every certificate it holds. A disabled
// account is not checked at all.
func (a *Account) Validate() error {
	if !a.Enabled {
		return nil
	}
	if a.ProviderURL == "" {
		return &MissingFieldError{Field: "provider_url"}
	}
	if a.MinimumValidityDays < 1 {
		return &InvalidValueError{
			Field:  "minimum_validity_days",
			Value:  a.MinimumValidityDays,
			Reason: "must be greater than zero",
		}
	}
	if a.Certificates == nil {
		return &MissingFieldError{Field: "certificates"}
	}
	for _, name := range sortedKeys(a.Certificates) {
		cert := a.Certificates[name]
		if cert == nil {
			return &MissingFieldError{Path: "certificates", Field: name}
		}
		if err := cert.Validate(); err != nil {
			return within(err, "certificates."+name)
		}
	}
	return nil
}

// Validate checks an enabled certificate has an organization and at least
// one hostname. A disabled certificate is not checked.
func (c *Certificate) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Organization == "" {
		return &MissingFieldError{Field: "organization"}
	}
	if len(c.Hostnames) == 0 {
		return &MissingFieldError{Field: "hostnames"}
	}
	return nil
}

// duplicateHostnames returns, sorted, every hostname listed by more than
// one entry. A hostname repeated within a single certificate counts too.
func duplicateHostnames(entries []CertificateEntry) []string {
	counts := make(map[string]int)
	for _, e := range entries {
		for _, h := range e.Certificate.Hostnames {
			counts[h]++
		}
	}
	var dups []string
	for h, n := range counts {
		if n > 1 {
			dups = append(dups, h)
		}
	}
	slices.Sort(dups)
	return dups
}

func defaultCertificates(entries []CertificateEntry) []CertificateRef {
	var refs []CertificateRef
	for _, e := range entries {
		if e.Certificate.DefaultCert {
			refs = append(refs, e.Ref)
		}
	}
	return refs
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
