package acme

import "slices"

// Clone returns a deep copy of c. Maps, slices and entities are freshly
// allocated, so edits to the copy never show through to c or the other way
// round. Nil maps and nil entries stay nil, which keeps an invalid tree
// invalid. Clone does not require c to be valid.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{}
	if c.RenewalCheckTime != nil {
		t := *c.RenewalCheckTime
		out.RenewalCheckTime = &t
	}
	if c.Accounts != nil {
		out.Accounts = make(map[string]*Account, len(c.Accounts))
		for name, a := range c.Accounts {
			out.Accounts[name] = a.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of a, including its certificates.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.ContactURIs = slices.Clone(a.ContactURIs)
	if a.Certificates != nil {
		out.Certificates = make(map[string]*Certificate, len(a.Certificates))
		for name, cert := range a.Certificates {
			out.Certificates[name] = cert.Clone()
		}
	}
	return &out
}

// Clone returns a copy of c with its own hostname slice.
func (c *Certificate) Clone() *Certificate {
	if c == nil {
		return nil
	}
	out := *c
	out.Hostnames = slices.Clone(c.Hostnames)
	return &out
}
