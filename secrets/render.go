package secrets

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dehydr8/guardian-go/model"
)

const headerGuard = "SECRETS_H"

// Render writes the firmware header for the variant. Nothing is written
// unless the secrets validate.
func Render(w io.Writer, s *model.Secrets, v Variant) error {
	if v == VariantServer {
		return fmt.Errorf("variant %s has no firmware header", v)
	}

	if err := Validate(s, v); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "/*\n * Guardian - Secrets File (%s variant)\n *\n", v)
	fmt.Fprintf(bw, " * Generated by guardian render. Do NOT commit this file.\n */\n\n")
	fmt.Fprintf(bw, "#ifndef %s\n#define %s\n", headerGuard, headerGuard)

	fmt.Fprintf(bw, "// --- WiFi Credentials ---\n")
	fmt.Fprintf(bw, "char %s[] = %s;\n", model.KeySSID, cString(s.Wifi.SSID))
	fmt.Fprintf(bw, "char %s[] = %s;\n", model.KeyPass, cString(s.Wifi.Password))

	switch v {
	case VariantDirect:
		fmt.Fprintf(bw, "// --- Telegram Bot Details ---\n")
		fmt.Fprintf(bw, "#define %s %s\n", model.KeyBotToken, cString(s.Telegram.BotToken))
		fmt.Fprintf(bw, "#define %s %s\n", model.KeyChatID, cString(s.Telegram.ChatID))
	case VariantRelay:
		fmt.Fprintf(bw, "// --- Alert Server ---\n")
		fmt.Fprintf(bw, "#define %s %s\n", model.KeyServerIP, cString(s.Server.IP))
		fmt.Fprintf(bw, "#define %s %d\n", model.KeyServerPort, s.Server.Port)
	}

	fmt.Fprintf(bw, "#endif // %s\n", headerGuard)

	return bw.Flush()
}

// cString quotes s as a C string literal. Non-ASCII bytes are emitted as
// octal escapes so the literal is independent of source encoding.
func cString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '?':
			// avoid trigraphs
			b.WriteString(`\?`)
		default:
			if c < 0x20 || c > 0x7e {
				b.WriteString(`\` + strconv.FormatInt(int64(c)+01000, 8)[1:])
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Redact masks a secret for log output. At most the first four characters
// survive.
func Redact(value string) string {
	if value == "" {
		return ""
	}
	runes := []rune(value)
	keep := 4
	if len(runes) <= 8 {
		keep = 0
	}
	return string(runes[:keep]) + strings.Repeat("*", 6)
}
