// Package cards identifies payment card networks from their leading digits.
package cards

import (
	"regexp"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

type rule struct {
	pattern *regexp.Regexp
	network enums.CardNetwork
}

// Rules are tried in order; the first match wins.
var rules = []rule{
	{regexp.MustCompile(`^4`), enums.CardNetworkVisa},
	{regexp.MustCompile(`^(5[1-5]|2[2-7])`), enums.CardNetworkMastercard},
	{regexp.MustCompile(`^3[47]`), enums.CardNetworkAmex},
	{regexp.MustCompile(`^6`), enums.CardNetworkDiscover},
	{regexp.MustCompile(`^35`), enums.CardNetworkJCB},
	{regexp.MustCompile(`^(30[0-5]|36|38)`), enums.CardNetworkDiners},
}

var separators = strings.NewReplacer(" ", "", "-", "")

// Normalize strips the space and dash separators shoppers type into card fields.
func Normalize(number string) string {
	return separators.Replace(strings.TrimSpace(number))
}

// Classify returns the network for a raw card number. It never fails.
func Classify(number string) enums.CardNetwork {
	digits := Normalize(number)
	for _, r := range rules {
		if r.pattern.MatchString(digits) {
			return r.network
		}
	}
	return enums.CardNetworkUnknown
}

// LastFour returns the final four digits of a card number, or all of them when shorter.
func LastFour(number string) string {
	digits := Normalize(number)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// Mask renders the number as "**** **** **** 1234".
func Mask(number string) string {
	return "**** **** **** " + LastFour(number)
}
