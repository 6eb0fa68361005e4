// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package certs

import "crypto/x509"

// Template is a named issuance profile. Once a certificate references a
// template, the profile is treated as immutable.
type Template struct {
	Name         string            `json:"name"`
	ValidityDays uint              `json:"validity_days"`
	KeyBits      int               `json:"key_bits"`
	KeyUsage     x509.KeyUsage     `json:"-"`
	ExtKeyUsage  []x509.ExtKeyUsage `json:"-"`
	// DNSName and EmailName control which subject-alternative-name
	// entries are derived from the device ID.
	DNSName   bool `json:"dns_name"`
	EmailName bool `json:"email_name"`
	// KeyUsageCritical and ExtKeyUsageCritical mark the corresponding
	// extensions critical in issued certificates.
	KeyUsageCritical    bool `json:"key_usage_critical"`
	ExtKeyUsageCritical bool `json:"ext_key_usage_critical"`
}

// Built-in issuance profiles for the device fleet.
const (
	TemplateSmartMeter = "smart_meter"
	TemplateServer     = "ieee2030_5_server"
	TemplateAPIGateway = "api_gateway"
)

var builtinTemplates = map[string]Template{
	TemplateSmartMeter: {
		Name:                TemplateSmartMeter,
		ValidityDays:        365,
		KeyBits:             2048,
		KeyUsage:            x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:         []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		DNSName:             true,
		EmailName:           true,
		KeyUsageCritical:    true,
		ExtKeyUsageCritical: true,
	},
	TemplateServer: {
		Name:                TemplateServer,
		ValidityDays:        730,
		KeyBits:             2048,
		KeyUsage:            x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:         []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSName:             true,
		KeyUsageCritical:    true,
		ExtKeyUsageCritical: true,
	},
	TemplateAPIGateway: {
		Name:                TemplateAPIGateway,
		ValidityDays:        365,
		KeyBits:             2048,
		KeyUsage:            x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:         []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSName:             true,
		KeyUsageCritical:    true,
		ExtKeyUsageCritical: true,
	},
}

// Templates returns the built-in issuance profiles keyed by name.
func Templates() map[string]Template {
	tmpls := make(map[string]Template, len(builtinTemplates))
	for name, t := range builtinTemplates {
		tmpls[name] = t
	}
	return tmpls
}
