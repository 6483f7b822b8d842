package secrets

import (
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"github.com/dehydr8/guardian-go/model"
)

// Variant selects which keys are required.
type Variant int

const (
	// VariantDirect is firmware that talks to the Telegram Bot API itself.
	VariantDirect Variant = iota + 1
	// VariantRelay is firmware that reports to an alert relay server.
	VariantRelay
	// VariantServer is the relay server holding the bot credentials.
	VariantServer
)

func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct", "1":
		return VariantDirect, nil
	case "relay", "2":
		return VariantRelay, nil
	case "server":
		return VariantServer, nil
	}
	return 0, fmt.Errorf("unknown variant %q (want direct, relay or server)", s)
}

func (v Variant) String() string {
	switch v {
	case VariantDirect:
		return "direct"
	case VariantRelay:
		return "relay"
	case VariantServer:
		return "server"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

func (v Variant) Keys() []model.Key {
	switch v {
	case VariantDirect:
		return []model.Key{model.KeySSID, model.KeyPass, model.KeyBotToken, model.KeyChatID}
	case VariantRelay:
		return []model.Key{model.KeySSID, model.KeyPass, model.KeyServerIP, model.KeyServerPort}
	case VariantServer:
		return []model.Key{model.KeyBotToken, model.KeyChatID}
	}
	return nil
}

type FieldError struct {
	Key    model.Key
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

var (
	botTokenPattern = regexp.MustCompile(`^[0-9]+:[A-Za-z0-9_-]+$`)
	chatIDPattern   = regexp.MustCompile(`^-?[0-9]+$`)
	channelPattern  = regexp.MustCompile(`^@[A-Za-z][A-Za-z0-9_]{4,31}$`)
	hexPSKPattern   = regexp.MustCompile(`^[0-9A-Fa-f]{64}$`)
)

// Validate checks the keys required by the variant and returns every failure
// joined together, each one a *FieldError.
func Validate(s *model.Secrets, v Variant) error {
	keys := v.Keys()
	if keys == nil {
		return fmt.Errorf("unknown variant %d", int(v))
	}
	return ValidateKeys(s, keys...)
}

// ValidateKeys is Validate for an explicit set of keys.
func ValidateKeys(s *model.Secrets, keys ...model.Key) error {
	var errs []error
	for _, k := range keys {
		if reason := check(s, k); reason != "" {
			errs = append(errs, &FieldError{Key: k, Reason: reason})
		}
	}

	return errors.Join(errs...)
}

// FieldErrors unpacks the errors returned by Validate.
func FieldErrors(err error) []*FieldError {
	if err == nil {
		return nil
	}

	var fe *FieldError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*FieldError
		for _, e := range joined.Unwrap() {
			out = append(out, FieldErrors(e)...)
		}
		return out
	}
	if errors.As(err, &fe) {
		return []*FieldError{fe}
	}
	return nil
}

func check(s *model.Secrets, k model.Key) string {
	value := s.Value(k)

	if k.Kind() == model.KindText {
		if value == "" {
			return "must not be empty"
		}
		if value == model.Placeholders[k] {
			return "still set to the template placeholder"
		}
	}

	switch k {
	case model.KeySSID:
		if len(value) > 32 {
			return "must be at most 32 bytes"
		}

	case model.KeyPass:
		if hexPSKPattern.MatchString(value) {
			return ""
		}
		if len(value) < 8 || len(value) > 63 {
			return "must be 8 to 63 characters or a 64 digit hex key"
		}
		for _, r := range value {
			if r < 0x20 || r > 0x7e {
				return "must be printable ASCII"
			}
		}

	case model.KeyBotToken:
		if !botTokenPattern.MatchString(value) {
			return "must look like <bot id>:<secret>"
		}

	case model.KeyChatID:
		if !chatIDPattern.MatchString(value) && !channelPattern.MatchString(value) {
			return "must be a numeric chat id or an @channel name"
		}

	case model.KeyServerIP:
		if _, err := netip.ParseAddr(value); err != nil {
			return "must be an IP address"
		}

	case model.KeyServerPort:
		if s.Server.InvalidPort != "" {
			return "must be an integer"
		}
		if s.Server.Port < 1 || s.Server.Port > 65535 {
			return "must be between 1 and 65535"
		}
	}

	return ""
}
