package model

import (
	"net"
	"strconv"
)

type Key string

const (
	KeySSID       Key = "SECRET_SSID"
	KeyPass       Key = "SECRET_PASS"
	KeyBotToken   Key = "SECRET_BOT_TOKEN"
	KeyChatID     Key = "SECRET_CHAT_ID"
	KeyServerIP   Key = "SECRET_SERVER_IP"
	KeyServerPort Key = "SECRET_SERVER_PORT"
)

type Kind int

const (
	KindText Kind = iota
	KindInteger
)

func (k Kind) String() string {
	if k == KindInteger {
		return "integer"
	}
	return "text"
}

// Kind reports the primitive type the firmware declares the key with.
func (k Key) Kind() Kind {
	if k == KeyServerPort {
		return KindInteger
	}
	return KindText
}

// AllKeys returns every known key in declaration order.
func AllKeys() []Key {
	return []Key{KeySSID, KeyPass, KeyBotToken, KeyChatID, KeyServerIP, KeyServerPort}
}

// Placeholders are the values shipped in the template header. A secret still
// holding one of them has not been filled in.
var Placeholders = map[Key]string{
	KeySSID:       "YOUR_WIFI_SSID",
	KeyPass:       "YOUR_WIFI_PASSWORD",
	KeyBotToken:   "1234567890:ABCDEFGHIJKLMNOPQRSTUVWXYZ-1234567890",
	KeyChatID:     "123456789",
	KeyServerIP:   "YOUR_SERVER_IP",
	KeyServerPort: "0",
}

type WifiCredentials struct {
	SSID     string
	Password string
}

type TelegramCredentials struct {
	BotToken string
	ChatID   string
}

type ServerConfig struct {
	IP   string
	Port int
	// InvalidPort holds the raw SECRET_SERVER_PORT text when it did not
	// parse as an integer.
	InvalidPort string
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

type Secrets struct {
	Wifi     WifiCredentials
	Telegram TelegramCredentials
	Server   ServerConfig
}

// Value returns the textual form of a key as it would appear in the header.
func (s *Secrets) Value(k Key) string {
	switch k {
	case KeySSID:
		return s.Wifi.SSID
	case KeyPass:
		return s.Wifi.Password
	case KeyBotToken:
		return s.Telegram.BotToken
	case KeyChatID:
		return s.Telegram.ChatID
	case KeyServerIP:
		return s.Server.IP
	case KeyServerPort:
		if s.Server.InvalidPort != "" {
			return s.Server.InvalidPort
		}
		return strconv.Itoa(s.Server.Port)
	}
	return ""
}
