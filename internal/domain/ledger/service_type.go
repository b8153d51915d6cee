package ledger

import (
	"github.com/mailcenter/billing/internal/domain/pricing"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ServiceType is the kind of mail-center service that produced a charge
type ServiceType string

const (
	ServiceReceiving  ServiceType = "receiving"
	ServiceStorage    ServiceType = "storage"
	ServiceForwarding ServiceType = "forwarding"
	ServiceScanning   ServiceType = "scanning"
	ServicePickup     ServiceType = "pickup"
	ServiceDisposal   ServiceType = "disposal"
	ServiceShipping   ServiceType = "shipping"
	ServiceCustom     ServiceType = "custom"
)

var actionKeys = map[ServiceType]pricing.ActionKey{
	ServiceReceiving:  pricing.ActionPackageReceiving,
	ServiceStorage:    pricing.ActionPackageStorage,
	ServiceForwarding: pricing.ActionPackageForwarding,
	ServiceScanning:   pricing.ActionMailScanning,
	ServicePickup:     pricing.ActionPackagePickup,
	ServiceDisposal:   pricing.ActionMailDisposal,
	ServiceShipping:   pricing.ActionShippingLabel,
	ServiceCustom:     pricing.ActionCustomService,
}

var meterSlugs = map[ServiceType]MeterSlug{
	ServiceReceiving:  MeterPackageScans,
	ServiceStorage:    MeterStorageDays,
	ServiceScanning:   MeterMailScans,
	ServiceShipping:   MeterShippingLabels,
	ServiceForwarding: MeterMailForwarding,
}

// IsValid checks if the service type is valid
func (s ServiceType) IsValid() bool {
	_, ok := actionKeys[s]
	return ok
}

// ActionKey maps the service type to its pricing catalog key
func (s ServiceType) ActionKey() pricing.ActionKey {
	if key, ok := actionKeys[s]; ok {
		return key
	}
	return pricing.ActionKey(s)
}

// MeterSlug returns the usage meter fed by this service type, if any
func (s ServiceType) MeterSlug() (MeterSlug, bool) {
	slug, ok := meterSlugs[s]
	return slug, ok
}

// AlwaysRecorded reports whether a zero-amount charge of this type is
// still written to the ledger for the audit trail.
func (s ServiceType) AlwaysRecorded() bool {
	return s == ServiceReceiving
}

// Label returns a display label, e.g. "Forwarding"
func (s ServiceType) Label() string {
	return cases.Title(language.English).String(string(s))
}
