//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

package conversation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Specialty is a department the GP can route a case to.
type Specialty string

// Specialties known to the routing vocabulary.
const (
	Pediatrics       Specialty = "pediatrics"
	Ophthalmology    Specialty = "ophthalmology"
	Orthopedics      Specialty = "orthopedics"
	Dermatology      Specialty = "dermatology"
	ENT              Specialty = "ent"
	Gynecology       Specialty = "gynecology"
	Psychiatry       Specialty = "psychiatry"
	InternalMedicine Specialty = "internal_medicine"
)

// routingTokens is the literal vocabulary the GP emits on the primary
// channel to select a specialist.
var routingTokens = map[string]Specialty{
	"pediatrician":      Pediatrics,
	"pediatrics":        Pediatrics,
	"ophthalmologist":   Ophthalmology,
	"orthopedist":       Orthopedics,
	"dermatologist":     Dermatology,
	"ent":               ENT,
	"gynecologist":      Gynecology,
	"psychiatrist":      Psychiatry,
	"internal medicine": InternalMedicine,
}

// NormalizeToken trims and lowercases s the way routing tokens are compared.
func NormalizeToken(s string) string {
	// A Caser keeps state, so one is built per call.
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// ParseRoutingToken maps a bare routing token to its specialty.
func ParseRoutingToken(s string) (Specialty, bool) {
	sp, ok := routingTokens[NormalizeToken(s)]
	return sp, ok
}

// IsRoutingToken reports whether s is a bare routing token.
func IsRoutingToken(s string) bool {
	_, ok := ParseRoutingToken(s)
	return ok
}

// Specialties lists every specialty in a stable order.
func Specialties() []Specialty {
	return []Specialty{
		Ophthalmology, Pediatrics, Orthopedics, Dermatology,
		ENT, Gynecology, Psychiatry, InternalMedicine,
	}
}

// Token returns the canonical routing token for sp.
func (sp Specialty) Token() string {
	switch sp {
	case Pediatrics:
		return "Pediatrician"
	case Ophthalmology:
		return "Ophthalmologist"
	case Orthopedics:
		return "Orthopedist"
	case Dermatology:
		return "Dermatologist"
	case ENT:
		return "ENT"
	case Gynecology:
		return "Gynecologist"
	case Psychiatry:
		return "Psychiatrist"
	case InternalMedicine:
		return "Internal medicine"
	default:
		return string(sp)
	}
}
