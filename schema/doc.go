// Package schema describes the fields accepted from a payment notification and
// sanitizes raw form input against them.
//
// Every field declares a typed default, an ordered list of conditions and an
// ordered list of normalizers. Conditions never short-circuit: all violations
// of a field are collected. Normalizers always run, whatever the validation
// outcome, so stored values stay bounded.
package schema
