// Package timeutil pins every timestamp the payment service records to UTC.
// The bank runs on Turkish local time while entitlement expiry math happens
// on stored values, so a single clock discipline matters more than helpers.
package timeutil

import "time"

// bankLayout is the second-resolution stamp the bank accepts as the
// merchant order id prefix and echoes back in order detail.
const bankLayout = "20060102150405"

// Now returns the current time in UTC. All persisted and compared
// timestamps go through this instead of time.Now().
func Now() time.Time {
	return time.Now().UTC()
}

// BankTimestamp renders t in the compact form used to build merchant
// order ids.
func BankTimestamp(t time.Time) string {
	return t.UTC().Format(bankLayout)
}
