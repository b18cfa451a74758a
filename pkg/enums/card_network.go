package enums

import "fmt"

// CardNetwork is the issuing network inferred from a card number prefix.
type CardNetwork string

const (
	CardNetworkVisa       CardNetwork = "visa"
	CardNetworkMastercard CardNetwork = "mastercard"
	CardNetworkAmex       CardNetwork = "amex"
	CardNetworkDiscover   CardNetwork = "discover"
	CardNetworkJCB        CardNetwork = "jcb"
	CardNetworkDiners     CardNetwork = "diners"
	CardNetworkUnknown    CardNetwork = "unknown"
)

var validCardNetworks = []CardNetwork{
	CardNetworkVisa,
	CardNetworkMastercard,
	CardNetworkAmex,
	CardNetworkDiscover,
	CardNetworkJCB,
	CardNetworkDiners,
	CardNetworkUnknown,
}

// String implements fmt.Stringer.
func (c CardNetwork) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CardNetwork.
func (c CardNetwork) IsValid() bool {
	for _, candidate := range validCardNetworks {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCardNetwork converts raw input into a CardNetwork.
func ParseCardNetwork(value string) (CardNetwork, error) {
	for _, candidate := range validCardNetworks {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid card network %q", value)
}

// DisplayName is the customer-facing network label.
func (c CardNetwork) DisplayName() string {
	switch c {
	case CardNetworkVisa:
		return "Visa"
	case CardNetworkMastercard:
		return "Mastercard"
	case CardNetworkAmex:
		return "American Express"
	case CardNetworkDiscover:
		return "Discover"
	case CardNetworkJCB:
		return "JCB"
	case CardNetworkDiners:
		return "Diners Club"
	default:
		return "Card"
	}
}
