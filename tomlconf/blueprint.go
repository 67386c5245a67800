package tomlconf

import "github.com/caasmo/acmeconfig"

// Blueprint returns an example configuration with placeholder values. It
// passes Validate; replace the placeholders before use.
func Blueprint() *acme.Config {
	cfg := acme.NewConfig(acme.TimeOfDay{Hour: 3, Minute: 30})

	account := acme.NewAccount(acme.LetsEncryptStaging, 30, "mailto:your-acme-account@example.com")
	account.AcceptedAgreementURL = "https://letsencrypt.org/documents/LE-SA-v1.4-April-3-2024.pdf"

	web := acme.NewCertificate("Example Org", "example.com", "www.example.com")
	web.DefaultCert = true
	account.Certificates["web"] = web
	account.Certificates["api"] = acme.NewCertificate("Example Org", "api.example.com")

	cfg.Accounts["letsencrypt"] = account
	return cfg
}
