package gomonetize

import (
	"sort"

	"github.com/mihaimyh/gomonetize/pkg/capability"
)

// Normalize extracts the canonical {monthly, annual} purchase-option pair
// from an offering payload. The commerce capability's data shape differs
// across SDK versions and store configurations; this is the single place
// that absorbs that variance. Normalization is idempotent: feeding an
// already-normalized pick back in yields the same pick. A missing option is
// a nil field, never an error.
func Normalize(payload interface{}) OfferingPick {
	switch v := payload.(type) {
	case OfferingPick:
		return v
	case *OfferingPick:
		if v == nil {
			return OfferingPick{}
		}
		return *v
	case *capability.Offerings:
		if v == nil {
			return OfferingPick{}
		}
		return OfferingPick{
			Monthly: pickPackage(v, capability.PackageTypeMonthly),
			Annual:  pickPackage(v, capability.PackageTypeAnnual),
		}
	case capability.Offerings:
		return Normalize(&v)
	default:
		return OfferingPick{}
	}
}

// extractFunc probes a single offering for a package of the given type.
type extractFunc func(*capability.Offering, capability.PackageType) *capability.Package

// extractors are applied in order until one yields a result: the direct
// named field first, then the package list filtered by type tag.
var extractors = []extractFunc{
	extractDirectField,
	extractFromPackageList,
}

// pickPackage probes the current offering first, then scans every other
// named offering in sorted-identifier order and returns the first match.
func pickPackage(offerings *capability.Offerings, t capability.PackageType) *capability.Package {
	if pkg := probeOffering(offerings.Current, t); pkg != nil {
		return pkg
	}

	names := make([]string, 0, len(offerings.All))
	for name := range offerings.All {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		offering := offerings.All[name]
		if offering == offerings.Current {
			continue // already probed
		}
		if pkg := probeOffering(offering, t); pkg != nil {
			return pkg
		}
	}

	return nil
}

func probeOffering(offering *capability.Offering, t capability.PackageType) *capability.Package {
	if offering == nil {
		return nil
	}
	for _, extract := range extractors {
		if pkg := extract(offering, t); pkg != nil {
			return pkg
		}
	}
	return nil
}

func extractDirectField(offering *capability.Offering, t capability.PackageType) *capability.Package {
	switch t {
	case capability.PackageTypeMonthly:
		return offering.Monthly
	case capability.PackageTypeAnnual:
		return offering.Annual
	default:
		return nil
	}
}

func extractFromPackageList(offering *capability.Offering, t capability.PackageType) *capability.Package {
	for _, pkg := range offering.AvailablePackages {
		if pkg != nil && pkg.Type == t {
			return pkg
		}
	}
	return nil
}
