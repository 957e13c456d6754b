// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"fmt"
	"strings"
)

// Validity is the version state of a legal document.
type Validity string

const (
	ValidityCurrent                 Validity = "current"
	ValiditySupersededWithSuccessor Validity = "superseded-with-successor"
	ValiditySupersededTerminal      Validity = "superseded-terminal"
	ValidityUnknown                 Validity = "unknown"
)

// Downloadable reports whether a document in this state may be fetched.
func (v Validity) Downloadable() bool {
	return v == ValidityCurrent
}

// Flag is the machine-readable validity marker a page carries, if any.
type Flag int

const (
	FlagAbsent Flag = iota
	FlagValid
	FlagInvalid
)

func (f Flag) String() string {
	switch f {
	case FlagValid:
		return "valid"
	case FlagInvalid:
		return "invalid"
	}
	return "absent"
}

type statusText int

const (
	statusNone statusText = iota
	statusInForce
	statusNotInForce
	statusChanged
	statusContradictory
)

// Phrases are matched on lower-cased text. Negative and change phrases are
// removed before the positive ones are searched, since "ne velja",
// "prenehal veljati" and "not in force" contain their positive
// counterparts. Longer phrases come first so their whole span is removed.
var (
	notInForcePhrases = []string{
		"prenehal veljati", "prenehala veljati", "preneha veljati", "prenehanje veljavnosti",
		"veljavnost prenehala", "veljavnost je prenehala",
		"ne velja", "neveljav", "prenehal", "razveljavljen",
		"no longer in force", "not in force", "repealed", "expired", "invalid",
	}
	changedPhrases = []string{
		"spremenjen", "nadomeščen", "nadomesten", "superseded", "amended", "replaced",
	}
	inForcePhrases = []string{
		"velja", "veljaven", "v veljavi", "in force", "valid",
	}
)

func classifyStatus(text string) statusText {
	s := strings.ToLower(text)
	remove := func(phrases []string) bool {
		found := false
		for _, p := range phrases {
			if strings.Contains(s, p) {
				found = true
				s = strings.ReplaceAll(s, p, " ")
			}
		}
		return found
	}
	notInForce := remove(notInForcePhrases)
	changed := remove(changedPhrases)
	inForce := false
	for _, p := range inForcePhrases {
		if strings.Contains(s, p) {
			inForce = true
			break
		}
	}

	switch {
	case inForce && (notInForce || changed):
		return statusContradictory
	case changed:
		return statusChanged
	case notInForce:
		return statusNotInForce
	case inForce:
		return statusInForce
	}
	return statusNone
}

// Classify combines a page's validity flag, its human-readable status text
// and the successor link (empty when none) into exactly one Validity.
// Combinations where the flag and the text disagree return
// ErrAmbiguousValidity rather than a guess.
func Classify(flag Flag, status, successor string) (Validity, error) {
	st := classifyStatus(status)
	ambiguous := func() (Validity, error) {
		return ValidityUnknown, fmt.Errorf("%w: flag %s with status %q", ErrAmbiguousValidity, flag, status)
	}
	supersededBy := func() Validity {
		if successor != "" {
			return ValiditySupersededWithSuccessor
		}
		return ValiditySupersededTerminal
	}

	if st == statusContradictory {
		return ambiguous()
	}

	switch flag {
	case FlagValid:
		switch st {
		case statusNone, statusInForce:
			return ValidityCurrent, nil
		}
		return ambiguous()

	case FlagInvalid:
		switch st {
		case statusInForce:
			return ambiguous()
		case statusChanged:
			if successor == "" {
				return ambiguous()
			}
			return ValiditySupersededWithSuccessor, nil
		}
		return supersededBy(), nil

	default:
		switch st {
		case statusInForce:
			return ValidityCurrent, nil
		case statusNotInForce:
			return supersededBy(), nil
		case statusChanged:
			if successor != "" {
				return ValiditySupersededWithSuccessor, nil
			}
		}
		return ValidityUnknown, nil
	}
}
