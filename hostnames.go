package acme

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/juju/collections/set"
)

// emptyHostnamesFingerprint is the fingerprint of an empty hostname list.
const emptyHostnamesFingerprint uint64 = 0x9e3779b97f4a7c15

// HostnamesEquivalent compares two hostname lists: the first elements must
// be equal and both lists must hold the same set of names. Two empty lists
// are equivalent; an empty and a non-empty list are not.
func HostnamesEquivalent(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	if a[0] != b[0] {
		return false
	}
	sa, sb := set.NewStrings(a...), set.NewStrings(b...)
	return sa.Size() == sb.Size() && sa.Difference(sb).IsEmpty()
}

// HostnamesFingerprint hashes a hostname list consistently with
// HostnamesEquivalent: equivalent lists have the same fingerprint.
func HostnamesFingerprint(hostnames []string) uint64 {
	if len(hostnames) == 0 {
		return emptyHostnamesFingerprint
	}
	// Summing over the distinct names keeps the set part order-free.
	var sum uint64
	for _, h := range set.NewStrings(hostnames...).Values() {
		sum += xxhash.Sum64String(h)
	}
	return xxhash.Sum64String(hostnames[0]) ^ sum
}

// Fingerprint hashes the fields compared by EquivalentTo.
func (c *Certificate) Fingerprint() uint64 {
	d := xxhash.New()
	var flags [2]byte
	if c.Enabled {
		flags[0] = 1
	}
	if c.DefaultCert {
		flags[1] = 1
	}
	_, _ = d.Write(flags[:])
	_, _ = d.WriteString(c.Organization)
	// Separator keeps organization bytes from running into the hostnames.
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(binary.BigEndian.AppendUint64(nil, HostnamesFingerprint(c.Hostnames)))
	return d.Sum64()
}
