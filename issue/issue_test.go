package issue

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caasmo/acmeconfig"
)

// genLeafCert creates a minimal self-signed leaf expiring at notAfter.
func genLeafCert(t *testing.T, notAfter time.Time) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "example.com"},
		NotBefore:             notAfter.Add(-90 * 24 * time.Hour),
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func testConfig() *acme.Config {
	cfg := acme.NewConfig(acme.TimeOfDay{Hour: 4})
	account := acme.NewAccount("https://acme.example/dir", 30, "tel:+100", "mailto:ops@example.com")
	account.Certificates["web"] = acme.NewCertificate("Acme Corp", "Example.COM", "www.example.com", "example.com")
	account.Certificates["intl"] = acme.NewCertificate("Acme Corp", "bücher.example")
	off := acme.NewCertificate("Acme Corp", "off.example.com")
	off.Enabled = false
	account.Certificates["off"] = off
	cfg.Accounts["main"] = account

	retired := acme.NewAccount("https://old.example/dir", 10)
	retired.Enabled = false
	retired.Certificates["legacy"] = acme.NewCertificate("Old", "legacy.example.com")
	cfg.Accounts["retired"] = retired
	return cfg
}

func TestPlan(t *testing.T) {
	orders, err := Plan(testConfig())
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, acme.CertificateRef{Account: "main", Certificate: "intl"}, orders[0].Ref)
	assert.Equal(t, []string{"xn--bcher-kva.example"}, orders[0].Request.Domains)

	web := orders[1]
	assert.Equal(t, acme.CertificateRef{Account: "main", Certificate: "web"}, web.Ref)
	assert.Equal(t, "https://acme.example/dir", web.ProviderURL)
	assert.Equal(t, "Acme Corp", web.Organization)
	assert.Equal(t, []string{"example.com", "www.example.com"}, web.Request.Domains)
	assert.True(t, web.Request.Bundle)
}

func TestReissue(t *testing.T) {
	prev := testConfig()
	next := prev.Clone()
	next.Accounts["main"].Certificates["web"].Hostnames = []string{"example.com", "www.example.com", "Example.COM"}
	next.Accounts["main"].Certificates["api"] = acme.NewCertificate("Acme Corp", "api.example.com")

	orders, err := Reissue(prev, next)
	require.NoError(t, err)

	var refs []string
	for _, o := range orders {
		refs = append(refs, o.Ref.Certificate)
	}
	assert.Equal(t, []string{"api", "web"}, refs)

	unchanged, err := Reissue(next, next.Clone())
	require.NoError(t, err)
	assert.Empty(t, unchanged)
}

func TestNormalizeHostnames(t *testing.T) {
	got, err := NormalizeHostnames([]string{" WWW.Example.com ", "example.com", "www.example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"www.example.com", "example.com"}, got)
}

func TestNewUser(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	account := acme.NewAccount("https://acme.example/dir", 30, "tel:+100", "mailto:ops@example.com", "mailto:other@example.com")
	user := NewUser(account, key)
	assert.Equal(t, "ops@example.com", user.GetEmail())
	assert.Equal(t, key, user.GetPrivateKey())
	assert.Nil(t, user.GetRegistration())

	assert.Empty(t, NewUser(acme.NewAccount("https://acme.example/dir", 30), key).GetEmail())
}

func TestClientConfig(t *testing.T) {
	account := acme.NewAccount("https://acme.example/dir", 30, "mailto:ops@example.com")
	cfg := ClientConfig(account, NewUser(account, nil))
	assert.Equal(t, "https://acme.example/dir", cfg.CADirURL)
	assert.Equal(t, certcrypto.EC256, cfg.Certificate.KeyType)
	assert.Equal(t, "ops@example.com", cfg.User.GetEmail())
}

func TestRegisterOptions(t *testing.T) {
	account := acme.NewAccount("https://acme.example/dir", 30)
	assert.False(t, RegisterOptions(account).TermsOfServiceAgreed)
	account.AcceptedAgreementURL = "https://acme.example/tos"
	assert.True(t, RegisterOptions(account).TermsOfServiceAgreed)
}

func TestNeedsRenewal(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	account := acme.NewAccount("https://acme.example/dir", 30)

	tests := []struct {
		name     string
		notAfter time.Time
		want     bool
	}{
		{name: "plenty of validity", notAfter: now.Add(60 * 24 * time.Hour), want: false},
		{name: "inside window", notAfter: now.Add(10 * 24 * time.Hour), want: true},
		{name: "exactly at window", notAfter: now.Add(30 * 24 * time.Hour), want: true},
		{name: "expired", notAfter: now.Add(-time.Hour), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NeedsRenewal(genLeafCert(t, tt.notAfter), account, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NeedsRenewal([]byte("not a certificate"), account, now)
	assert.Error(t, err)
}

func TestPlan_NilConfig(t *testing.T) {
	orders, err := Plan(nil)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestReissue_NilConfigs(t *testing.T) {
	orders, err := Reissue(testConfig(), nil)
	require.NoError(t, err)
	assert.Empty(t, orders, "removed certificates need no order")

	orders, err = Reissue(nil, testConfig())
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestPlan_NormalizedCollision(t *testing.T) {
	cfg := acme.NewConfig(acme.TimeOfDay{Hour: 4})
	account := acme.NewAccount("https://acme.example/dir", 30)
	account.Certificates["one"] = acme.NewCertificate("Acme Corp", "Example.com", "one.example.com")
	account.Certificates["two"] = acme.NewCertificate("Acme Corp", "example.com")
	cfg.Accounts["main"] = account
	require.NoError(t, cfg.Validate(), "raw hostnames differ")

	_, err := Plan(cfg)
	var collision *CollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, map[string][]acme.CertificateRef{
		"example.com": {
			{Account: "main", Certificate: "one"},
			{Account: "main", Certificate: "two"},
		},
	}, collision.Hostnames)
	assert.Contains(t, err.Error(), "example.com (account main certificate one, account main certificate two)")

	// A change elsewhere still surfaces the clash.
	prev := cfg.Clone()
	delete(prev.Accounts["main"].Certificates, "two")
	_, err = Reissue(prev, cfg)
	assert.ErrorAs(t, err, &collision)
}
