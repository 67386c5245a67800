package acme

import "slices"

// ChangeKind classifies how a certificate differs between two versions.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Added
	Removed
	Modified
)

func (k ChangeKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	}
	return "unknown"
}

// CertificateChange is one entry of a Diff.
type CertificateChange struct {
	Ref      CertificateRef
	Kind     ChangeKind
	Previous *Certificate // nil when Added
	Next     *Certificate // nil when Removed
}

// NeedsIssuance reports whether the change calls for obtaining a new
// certificate.
func (c CertificateChange) NeedsIssuance() bool {
	return c.Kind == Added || c.Kind == Modified
}

// Diff compares the enabled subtrees of two configuration versions. A
// certificate that stays enabled is Modified when its definition is not
// EquivalentTo the previous one. A nil prev reports everything in next as
// Added. The result is ordered by account then certificate name.
func Diff(prev, next *Config) []CertificateChange {
	before := make(map[CertificateRef]*Certificate)
	if prev != nil {
		for _, e := range prev.EnabledCertificates() {
			before[e.Ref] = e.Certificate
		}
	}

	var changes []CertificateChange
	if next != nil {
		for _, e := range next.EnabledCertificates() {
			old, ok := before[e.Ref]
			delete(before, e.Ref)
			change := CertificateChange{Ref: e.Ref, Previous: old, Next: e.Certificate}
			switch {
			case !ok:
				change.Kind = Added
			case !old.EquivalentTo(e.Certificate):
				change.Kind = Modified
			default:
				change.Kind = Unchanged
			}
			changes = append(changes, change)
		}
	}
	for ref, old := range before {
		changes = append(changes, CertificateChange{Ref: ref, Kind: Removed, Previous: old})
	}

	slices.SortFunc(changes, func(a, b CertificateChange) int {
		return compareRefs(a.Ref, b.Ref)
	})
	return changes
}

func compareRefs(a, b CertificateRef) int {
	switch {
	case a.Account < b.Account:
		return -1
	case a.Account > b.Account:
		return 1
	case a.Certificate < b.Certificate:
		return -1
	case a.Certificate > b.Certificate:
		return 1
	}
	return 0
}
