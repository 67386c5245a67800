package acme_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/caasmo/acmeconfig"
)

func TestHostnamesEquivalent(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want bool
	}{
		{name: "both empty", a: []string{}, b: []string{}, want: true},
		{name: "nil and empty", a: nil, b: []string{}, want: true},
		{name: "one empty", a: []string{"a"}, b: nil, want: false},
		{name: "identical", a: []string{"a", "b", "c"}, b: []string{"a", "b", "c"}, want: true},
		{name: "tail reordered", a: []string{"a", "b", "c"}, b: []string{"a", "c", "b"}, want: true},
		{name: "primary changed", a: []string{"a", "b", "c"}, b: []string{"b", "a", "c"}, want: false},
		{name: "extra name", a: []string{"a", "b"}, b: []string{"a", "b", "c"}, want: false},
		{name: "different tail", a: []string{"a", "b"}, b: []string{"a", "c"}, want: false},
		{name: "repeated names collapse", a: []string{"a", "b", "b"}, b: []string{"a", "b"}, want: true},
		{name: "single name", a: []string{"a"}, b: []string{"a"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, acme.HostnamesEquivalent(tt.a, tt.b))
			assert.Equal(t, tt.want, acme.HostnamesEquivalent(tt.b, tt.a), "symmetry")
			if tt.want {
				assert.Equal(t, acme.HostnamesFingerprint(tt.a), acme.HostnamesFingerprint(tt.b))
			}
		})
	}
}

func TestHostnamesEquivalent_Reflexive(t *testing.T) {
	for _, h := range [][]string{nil, {"a"}, {"x", "y", "z"}} {
		assert.True(t, acme.HostnamesEquivalent(h, h))
	}
}

func TestHostnamesFingerprint_DistinguishesPrimary(t *testing.T) {
	a := acme.HostnamesFingerprint([]string{"a.example", "b.example"})
	b := acme.HostnamesFingerprint([]string{"b.example", "a.example"})
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, acme.HostnamesFingerprint(nil), a)
	assert.Equal(t, acme.HostnamesFingerprint(nil), acme.HostnamesFingerprint([]string{}))
}

func TestCertificateEquivalentTo(t *testing.T) {
	base := acme.NewCertificate("Acme Corp", "example.com", "www.example.com", "api.example.com")

	tests := []struct {
		name   string
		mutate func(*acme.Certificate)
		want   bool
	}{
		{name: "copy", mutate: func(*acme.Certificate) {}, want: true},
		{name: "tail reordered", mutate: func(c *acme.Certificate) {
			c.Hostnames = []string{"example.com", "api.example.com", "www.example.com"}
		}, want: true},
		{name: "primary swapped", mutate: func(c *acme.Certificate) {
			c.Hostnames = []string{"www.example.com", "example.com", "api.example.com"}
		}, want: false},
		{name: "organization changed", mutate: func(c *acme.Certificate) { c.Organization = "Other" }, want: false},
		{name: "default flag changed", mutate: func(c *acme.Certificate) { c.DefaultCert = true }, want: false},
		{name: "disabled", mutate: func(c *acme.Certificate) { c.Enabled = false }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base.Clone()
			tt.mutate(other)
			assert.Equal(t, tt.want, base.EquivalentTo(other))
			assert.Equal(t, tt.want, other.EquivalentTo(base))
			if tt.want {
				assert.Equal(t, base.Fingerprint(), other.Fingerprint())
			} else {
				assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
			}
		})
	}
}

func TestCertificateEquivalentTo_Nil(t *testing.T) {
	var none *acme.Certificate
	assert.True(t, none.EquivalentTo(nil))
	assert.False(t, none.EquivalentTo(acme.NewCertificate("Org", "a")))
	assert.False(t, acme.NewCertificate("Org", "a").EquivalentTo(nil))
}

func TestPrimaryHostname(t *testing.T) {
	assert.Equal(t, "example.com", acme.NewCertificate("Org", "example.com", "www.example.com").PrimaryHostname())
	assert.Empty(t, acme.NewCertificate("Org").PrimaryHostname())
}
