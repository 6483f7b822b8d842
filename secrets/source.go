package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/dehydr8/guardian-go/model"
	"github.com/joho/godotenv"
)

// Source looks up the raw value of a secret by its key name.
type Source func(key string) (string, bool)

func Environ() Source {
	return os.LookupEnv
}

func FromMap(m map[string]string) Source {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Chain returns a source answering from the first source that has the key.
func Chain(sources ...Source) Source {
	return func(key string) (string, bool) {
		for _, src := range sources {
			if src == nil {
				continue
			}
			if v, ok := src(key); ok {
				return v, true
			}
		}
		return "", false
	}
}

// DotEnv reads the given .env files. Every file must exist.
func DotEnv(paths ...string) (Source, error) {
	values, err := godotenv.Read(paths...)
	if err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	return FromMap(values), nil
}

// OptionalDotEnv is DotEnv for a single file that may be absent.
func OptionalDotEnv(path string) (Source, error) {
	src, err := DotEnv(path)
	if errors.Is(err, fs.ErrNotExist) {
		return FromMap(nil), nil
	}
	return src, err
}

// Load reads every known key from src. Missing keys are left empty and
// nothing is rejected here; Validate decides per variant.
// WiFi values are kept verbatim.
func Load(src Source) *model.Secrets {
	raw := func(k model.Key) string {
		v, _ := src(string(k))
		return v
	}
	get := func(k model.Key) string {
		return strings.TrimSpace(raw(k))
	}

	s := &model.Secrets{
		Wifi: model.WifiCredentials{
			SSID:     raw(model.KeySSID),
			Password: raw(model.KeyPass),
		},
		Telegram: model.TelegramCredentials{
			BotToken: get(model.KeyBotToken),
			ChatID:   get(model.KeyChatID),
		},
		Server: model.ServerConfig{
			IP: get(model.KeyServerIP),
		},
	}

	if raw := get(model.KeyServerPort); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil {
			s.Server.Port = port
		} else {
			s.Server.InvalidPort = raw
		}
	}

	return s
}
