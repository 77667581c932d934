package gomonetize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/gomonetize/pkg/capability"
)

func pkgOf(id string, t capability.PackageType) *capability.Package {
	return &capability.Package{Identifier: id, Type: t}
}

func TestNormalize_DirectFieldOnCurrent(t *testing.T) {
	monthly := pkgOf("$rc_monthly", capability.PackageTypeMonthly)
	payload := &capability.Offerings{
		Current: &capability.Offering{Identifier: "default", Monthly: monthly},
	}

	pick := Normalize(payload)

	assert.Same(t, monthly, pick.Monthly)
	assert.Nil(t, pick.Annual)
}

func TestNormalize_PackageListFallback(t *testing.T) {
	monthly := pkgOf("$rc_monthly", capability.PackageTypeMonthly)
	annual := pkgOf("$rc_annual", capability.PackageTypeAnnual)
	payload := &capability.Offerings{
		Current: &capability.Offering{
			Identifier:        "default",
			AvailablePackages: []*capability.Package{annual, monthly},
		},
	}

	pick := Normalize(payload)

	assert.Same(t, monthly, pick.Monthly)
	assert.Same(t, annual, pick.Annual)
}

func TestNormalize_DirectFieldWinsOverList(t *testing.T) {
	direct := pkgOf("direct", capability.PackageTypeMonthly)
	listed := pkgOf("listed", capability.PackageTypeMonthly)
	payload := &capability.Offerings{
		Current: &capability.Offering{
			Monthly:           direct,
			AvailablePackages: []*capability.Package{listed},
		},
	}

	pick := Normalize(payload)

	assert.Same(t, direct, pick.Monthly)
}

func TestNormalize_CatalogScanWhenCurrentEmpty(t *testing.T) {
	annual := pkgOf("promo_annual", capability.PackageTypeAnnual)
	payload := &capability.Offerings{
		Current: &capability.Offering{Identifier: "default"},
		All: map[string]*capability.Offering{
			"default": {Identifier: "default"},
			"promo":   {Identifier: "promo", Annual: annual},
		},
	}

	pick := Normalize(payload)

	assert.Nil(t, pick.Monthly)
	assert.Same(t, annual, pick.Annual)
}

func TestNormalize_CatalogScanDeterministicOrder(t *testing.T) {
	// Two catalog offerings both carry a monthly package; the scan runs in
	// sorted-identifier order, so "aaa" always wins.
	first := pkgOf("from_aaa", capability.PackageTypeMonthly)
	second := pkgOf("from_zzz", capability.PackageTypeMonthly)
	payload := &capability.Offerings{
		All: map[string]*capability.Offering{
			"zzz": {Identifier: "zzz", Monthly: second},
			"aaa": {Identifier: "aaa", Monthly: first},
		},
	}

	for i := 0; i < 20; i++ {
		pick := Normalize(payload)
		require.Same(t, first, pick.Monthly)
	}
}

func TestNormalize_IndependentLookupPerType(t *testing.T) {
	// Monthly comes from the current offering, annual from the catalog.
	monthly := pkgOf("$rc_monthly", capability.PackageTypeMonthly)
	annual := pkgOf("$rc_annual", capability.PackageTypeAnnual)
	current := &capability.Offering{Identifier: "default", Monthly: monthly}
	payload := &capability.Offerings{
		Current: current,
		All: map[string]*capability.Offering{
			"default": current,
			"legacy":  {Identifier: "legacy", Annual: annual},
		},
	}

	pick := Normalize(payload)

	assert.Same(t, monthly, pick.Monthly)
	assert.Same(t, annual, pick.Annual)
}

func TestNormalize_Idempotent(t *testing.T) {
	payloads := []interface{}{
		nil,
		&capability.Offerings{},
		&capability.Offerings{
			Current: &capability.Offering{
				Monthly: pkgOf("m", capability.PackageTypeMonthly),
				Annual:  pkgOf("a", capability.PackageTypeAnnual),
			},
		},
		&capability.Offerings{
			All: map[string]*capability.Offering{
				"alt": {AvailablePackages: []*capability.Package{
					pkgOf("m", capability.PackageTypeMonthly),
				}},
			},
		},
	}

	for _, payload := range payloads {
		once := Normalize(payload)
		twice := Normalize(once)
		assert.Equal(t, once, twice)

		// Pointer form normalizes identically.
		assert.Equal(t, once, Normalize(&once))
	}
}

func TestNormalize_EmptyAndUnknownPayloads(t *testing.T) {
	assert.Equal(t, OfferingPick{}, Normalize(nil))
	assert.Equal(t, OfferingPick{}, Normalize((*capability.Offerings)(nil)))
	assert.Equal(t, OfferingPick{}, Normalize((*OfferingPick)(nil)))
	assert.Equal(t, OfferingPick{}, Normalize("garbage"))
	assert.Equal(t, OfferingPick{}, Normalize(&capability.Offerings{}))
}

func TestNormalize_ValueOfferings(t *testing.T) {
	monthly := pkgOf("m", capability.PackageTypeMonthly)
	payload := capability.Offerings{
		Current: &capability.Offering{Monthly: monthly},
	}

	pick := Normalize(payload)
	assert.Same(t, monthly, pick.Monthly)
}
