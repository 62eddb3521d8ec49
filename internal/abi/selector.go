// Package abi decodes Polymarket CTF-exchange matchOrders calldata into
// typed order events. The decoder is built once from a fixed function shape;
// no ABI assets are loaded at runtime.
package abi

import "strings"

// selectorHexLen is the length of a 4-byte function selector in hex chars.
const selectorHexLen = 8

// NormalizeSelector lowercases a selector and strips an optional 0x prefix.
func NormalizeSelector(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

// IsTarget reports whether the first 4 bytes of callData equal selector.
// Comparison is case-insensitive and tolerates a missing 0x prefix on either
// argument. Call data shorter than a selector never matches.
func IsTarget(callData, selector string) bool {
	data := NormalizeSelector(callData)
	sel := NormalizeSelector(selector)
	if len(sel) != selectorHexLen || len(data) < selectorHexLen {
		return false
	}
	return data[:selectorHexLen] == sel
}
