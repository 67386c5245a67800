// Package issue turns a validated configuration into the requests an ACME
// client has to make. It performs no network calls itself.
package issue

import (
	"crypto"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
	"golang.org/x/net/idna"

	"github.com/caasmo/acmeconfig"
)

// Order is one certificate to obtain.
type Order struct {
	Ref          acme.CertificateRef
	ProviderURL  string
	Organization string
	Request      certificate.ObtainRequest
}

// CollisionError reports hostnames that are spelled differently in the
// configuration but normalize to the same name in more than one order.
type CollisionError struct {
	Hostnames map[string][]acme.CertificateRef
}

func (e *CollisionError) Error() string {
	names := slices.Sorted(maps.Keys(e.Hostnames))
	parts := make([]string, len(names))
	for i, name := range names {
		refs := make([]string, len(e.Hostnames[name]))
		for j, r := range e.Hostnames[name] {
			refs[j] = r.String()
		}
		parts[i] = fmt.Sprintf("%s (%s)", name, strings.Join(refs, ", "))
	}
	return "issue: hostnames requested by more than one certificate after normalization: " + strings.Join(parts, "; ")
}

// Plan returns an order for every enabled certificate of every enabled
// account, in account then certificate order. A nil cfg has no orders.
func Plan(cfg *acme.Config) ([]Order, error) {
	var orders []Order
	for _, e := range cfg.EnabledCertificates() {
		o, err := newOrder(e)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := checkCollisions(orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Reissue returns the orders for certificates that were added or whose
// definition changed between prev and next. The whole of next is planned,
// so collisions with unchanged certificates are reported too.
func Reissue(prev, next *acme.Config) ([]Order, error) {
	planned, err := Plan(next)
	if err != nil {
		return nil, err
	}
	byRef := make(map[acme.CertificateRef]Order, len(planned))
	for _, o := range planned {
		byRef[o.Ref] = o
	}

	var orders []Order
	for _, c := range acme.Diff(prev, next) {
		if !c.NeedsIssuance() {
			continue
		}
		orders = append(orders, byRef[c.Ref])
	}
	return orders, nil
}

// checkCollisions fails when a normalized hostname appears in more than
// one order.
func checkCollisions(orders []Order) error {
	owners := make(map[string][]acme.CertificateRef)
	for _, o := range orders {
		for _, d := range o.Request.Domains {
			owners[d] = append(owners[d], o.Ref)
		}
	}
	collisions := make(map[string][]acme.CertificateRef)
	for name, refs := range owners {
		if len(refs) > 1 {
			collisions[name] = refs
		}
	}
	if len(collisions) > 0 {
		return &CollisionError{Hostnames: collisions}
	}
	return nil
}

func newOrder(e acme.CertificateEntry) (Order, error) {
	domains, err := NormalizeHostnames(e.Certificate.Hostnames)
	if err != nil {
		return Order{}, fmt.Errorf("issue: %s: %w", e.Ref, err)
	}
	return Order{
		Ref:          e.Ref,
		ProviderURL:  e.Account.ProviderURL,
		Organization: e.Certificate.Organization,
		Request: certificate.ObtainRequest{
			Domains: domains,
			Bundle:  true,
		},
	}, nil
}

// NormalizeHostnames lower-cases the names, converts them to their ASCII
// form and drops repeats. The primary hostname stays first.
func NormalizeHostnames(hostnames []string) ([]string, error) {
	seen := make(map[string]struct{}, len(hostnames))
	out := make([]string, 0, len(hostnames))
	for _, h := range hostnames {
		ascii, err := idna.ToASCII(strings.ToLower(strings.TrimSpace(h)))
		if err != nil {
			return nil, fmt.Errorf("invalid hostname %q: %w", h, err)
		}
		if _, dup := seen[ascii]; dup {
			continue
		}
		seen[ascii] = struct{}{}
		out = append(out, ascii)
	}
	return out, nil
}

// User implements lego's registration.User for a configured account.
type User struct {
	Email        string
	Registration *registration.Resource
	key          crypto.PrivateKey
}

// NewUser returns the ACME user for account, signing with key. The email is
// taken from the first mailto: contact URI.
func NewUser(account *acme.Account, key crypto.PrivateKey) *User {
	return &User{Email: contactEmail(account.ContactURIs), key: key}
}

func (u *User) GetEmail() string                        { return u.Email }
func (u *User) GetRegistration() *registration.Resource { return u.Registration }
func (u *User) GetPrivateKey() crypto.PrivateKey        { return u.key }

func contactEmail(uris []string) string {
	for _, uri := range uris {
		if email, ok := strings.CutPrefix(uri, "mailto:"); ok && email != "" {
			return email
		}
	}
	return ""
}

// ClientConfig returns the lego client configuration for account. Issued
// certificates use ECDSA P-256 keys.
func ClientConfig(account *acme.Account, user *User) *lego.Config {
	cfg := lego.NewConfig(user)
	cfg.CADirURL = account.ProviderURL
	cfg.Certificate.KeyType = certcrypto.EC256
	return cfg
}

// RegisterOptions agrees to the provider's terms only when the account
// records an accepted agreement.
func RegisterOptions(account *acme.Account) registration.RegisterOptions {
	return registration.RegisterOptions{TermsOfServiceAgreed: account.AcceptedAgreementURL != ""}
}

// NeedsRenewal reports whether the leaf certificate in chainPEM expires
// within the account's minimum validity window at now.
func NeedsRenewal(chainPEM []byte, account *acme.Account, now time.Time) (bool, error) {
	leaf, err := certcrypto.ParsePEMCertificate(chainPEM)
	if err != nil {
		return false, fmt.Errorf("issue: parse certificate: %w", err)
	}
	window := time.Duration(account.MinimumValidityDays) * 24 * time.Hour
	return !now.Add(window).Before(leaf.NotAfter), nil
}
