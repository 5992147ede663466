package legacy

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/danmuck/framelink/internal/protocol"
	"github.com/google/uuid"
)

// DefaultReceiverPath is where hosts serve the receiver.
const DefaultReceiverPath = "/framelink/receiver"

var validAddress = regexp.MustCompile(`(?i)^(?:https?://|[/?#.])`)

// ValidateAddress accepts absolute http(s) addresses and relative ones
// starting with / ? # or a dot.
func ValidateAddress(addr string) error {
	if validAddress.MatchString(addr) {
		return nil
	}
	return protocol.NewError(protocol.KindInvalidLegacyAddress, "legacy: address is not valid", map[string]any{
		"address": addr,
	})
}

// BuildAddress renders {candidate}{receiverPath}?{cacheBuster}#{fragment}.
func BuildAddress(candidate, receiverPath, cacheBuster string, env protocol.Envelope) (string, error) {
	data, err := protocol.Encode(env)
	if err != nil {
		return "", err
	}
	addr := candidate + receiverPath + "?" + cacheBuster + "#" + EncodeFragment(data)
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return addr, nil
}

// ParseAddress decodes the envelope carried by the fragment of addr.
func ParseAddress(addr string) (protocol.Envelope, error) {
	_, fragment, ok := strings.Cut(addr, "#")
	if !ok {
		return protocol.Envelope{}, protocol.NewError(protocol.KindMalformedPayload, "legacy: address has no fragment", nil)
	}
	return ParseFragment(fragment)
}

// ParseFragment decodes an escaped fragment without its leading '#'.
func ParseFragment(fragment string) (protocol.Envelope, error) {
	data, err := url.PathUnescape(strings.TrimPrefix(fragment, "#"))
	if err != nil {
		return protocol.Envelope{}, protocol.WrapError(err, protocol.KindMalformedPayload, "legacy: fragment escape invalid", nil)
	}
	return protocol.Decode(data)
}

// EncodeFragment escapes data the way URI components are escaped, spaces
// as %20.
func EncodeFragment(data string) string {
	return strings.ReplaceAll(url.QueryEscape(data), "+", "%20")
}

// NewCacheBuster returns a fresh query token so repeated navigations reload.
func NewCacheBuster() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
