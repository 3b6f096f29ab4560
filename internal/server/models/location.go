package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Address is a postal address captured from the payment processor.
type Address struct {
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Country    string
}

// LookupKey is the dedup key of a. Fields are joined with the ASCII unit
// separator so "a"+"bc" and "ab"+"c" never collide.
func (a Address) LookupKey() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		a.Line1, a.Line2, a.City, a.PostalCode, a.Country,
	}, "\x1f")))
	return hex.EncodeToString(sum[:])
}

type Location struct {
	ID     int64
	UserID string
	Address
	LookupKey string
}
