// Package model defines the domain types shared across the extraction
// pipeline: invoice records, source documents, journals and runs.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ReferenceType identifies the kind of metering-point reference.
type ReferenceType string

const (
	ReferencePCE ReferenceType = "PCE" // gas: Point de Comptage et d'Estimation
	ReferencePDL ReferenceType = "PDL" // electricity: Point de Livraison
	ReferencePRM ReferenceType = "PRM" // electricity: Point Référence Mesure
)

// referenceDigits is the canonical digit count for every reference type.
// PCE, PDL and PRM identifiers are all 14-digit strings.
const referenceDigits = 14

// ExpectedDigits returns the canonical digit count for the reference type.
func (t ReferenceType) ExpectedDigits() int {
	return referenceDigits
}

// Segment returns the energy segment implied by the reference type.
func (t ReferenceType) Segment() EnergySegment {
	if t == ReferencePCE {
		return SegmentGas
	}
	return SegmentElectricity
}

// Valid reports whether t is one of the known reference types.
func (t ReferenceType) Valid() bool {
	switch t {
	case ReferencePCE, ReferencePDL, ReferencePRM:
		return true
	}
	return false
}

// EnergySegment is the energy carrier of the metering point.
type EnergySegment string

const (
	SegmentGas         EnergySegment = "Gaz"
	SegmentElectricity EnergySegment = "Électricité"
)

// TariffSegment is a consumption-tier classification: T1-T4 for gas,
// C1-C5 for electricity.
type TariffSegment string

// Valid reports whether s is a recognized tariff segment.
func (s TariffSegment) Valid() bool {
	if len(s) != 2 {
		return false
	}
	switch s[0] {
	case 'T':
		return s[1] >= '1' && s[1] <= '4'
	case 'C':
		return s[1] >= '1' && s[1] <= '5'
	}
	return false
}

// ConsistentWith reports whether the segment prefix matches the energy
// carrier: T-segments belong to gas, C-segments to electricity.
func (s TariffSegment) ConsistentWith(seg EnergySegment) bool {
	if !s.Valid() {
		return false
	}
	if s[0] == 'T' {
		return seg == SegmentGas
	}
	return seg == SegmentElectricity
}

// RegulatedTariff says whether the contract is on the regulated sale price.
// It is only ever set from explicit wording, never guessed.
type RegulatedTariff string

const (
	RegulatedYes RegulatedTariff = "Oui"
	RegulatedNo  RegulatedTariff = "Non"
)

// RecordState tracks a record's lifetime inside the deduplication index.
type RecordState string

const (
	StateCandidate  RecordState = "candidate"
	StateKept       RecordState = "kept"
	StateSuperseded RecordState = "superseded"
)

// Date is a calendar date without a time component. It marshals to the
// ISO form "2006-01-02".
type Date struct {
	time.Time
}

// NewDate builds a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseISODate parses "2006-01-02".
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// String returns the ISO form.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Equal reports whether d and other are the same calendar date.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// MarshalJSON encodes the date as "2006-01-02".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes "2006-01-02"; empty and null decode to the zero Date.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseISODate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// EnergyInvoiceRecord is the canonical output unit: one normalized record
// per metering point. Absent values are nil, never empty strings.
type EnergyInvoiceRecord struct {
	DocumentDate          *Date            `json:"document_date,omitempty"`
	Supplier              *string          `json:"supplier,omitempty"`
	SiteName              *string          `json:"site_name,omitempty"`
	EnergyReference       *string          `json:"energy_reference,omitempty"`
	EnergyReferenceType   *ReferenceType   `json:"energy_reference_type,omitempty"`
	EnergyReferenceLength *int             `json:"energy_reference_length,omitempty"`
	AddressConsumption    *string          `json:"address_consumption,omitempty"`
	AddressBilling        *string          `json:"address_billing,omitempty"`
	PostalCode            *string          `json:"postal_code,omitempty"`
	City                  *string          `json:"city,omitempty"`
	EnergySegment         *EnergySegment   `json:"energy_segment,omitempty"`
	OfferTags             []string         `json:"offer_tags,omitempty"`
	TariffSegment         *TariffSegment   `json:"tariff_segment,omitempty"`
	ContractStartDate     *Date            `json:"contract_start_date,omitempty"`
	ContractExpiryDate    *Date            `json:"contract_expiry_date,omitempty"`
	TerminationNotice     *string          `json:"termination_notice,omitempty"`
	RenewalTerms          *string          `json:"renewal_terms,omitempty"`
	ClientSirenSiret      *string          `json:"client_siren_siret,omitempty"`
	RegulatedTariff       *RegulatedTariff `json:"regulated_tariff,omitempty"`
}

// HasReference reports whether the record carries a validated reference.
func (r *EnergyInvoiceRecord) HasReference() bool {
	return r.EnergyReference != nil && *r.EnergyReference != ""
}

// AddOfferTag appends a tag unless an equal tag (case-insensitive) is
// already present. Insertion order is preserved for display.
func (r *EnergyInvoiceRecord) AddOfferTag(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	for _, existing := range r.OfferTags {
		if strings.EqualFold(existing, tag) {
			return
		}
	}
	r.OfferTags = append(r.OfferTags, tag)
}

// StringPtr returns a pointer to s, or nil when s is blank after trimming.
// Absent values are represented as nil throughout the record, so every
// producer funnels through here.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
