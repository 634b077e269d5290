// Package charset converts strings between UTF-8 and the single-byte code
// page a machine uses for its string cells.
package charset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

var log = commonlog.GetLogger("cellbridge.charset")

// Transcoder converts between UTF-8 and a target encoding. Failed
// conversions return the input unchanged.
type Transcoder interface {
	ToTarget(utf8 string) string
	ToUTF8(target string) string
}

// Identity passes strings through untouched.
var Identity Transcoder = identity{}

type identity struct{}

func (identity) ToTarget(s string) string { return s }
func (identity) ToUTF8(s string) string   { return s }

// Codec transcodes through an x/text encoding.
type Codec struct {
	name string
	enc  encoding.Encoding
}

// Name returns the canonical name the codec was resolved to.
func (c *Codec) Name() string { return c.name }

// ToTarget encodes a UTF-8 string. Characters the target cannot represent are
// replaced.
func (c *Codec) ToTarget(s string) string {
	out, err := encoding.ReplaceUnsupported(c.enc.NewEncoder()).String(s)
	if err != nil {
		log.Debugf("encode to %s: %s", c.name, err)
		return s
	}
	return out
}

// ToUTF8 decodes a target-encoded string.
func (c *Codec) ToUTF8(s string) string {
	out, err := c.enc.NewDecoder().String(s)
	if err != nil {
		log.Debugf("decode from %s: %s", c.name, err)
		return s
	}
	return out
}

// codePages maps numeric code page identifiers that are not plain
// "windows-N" names.
var codePages = map[int]encoding.Encoding{
	437:   charmap.CodePage437,
	850:   charmap.CodePage850,
	852:   charmap.CodePage852,
	855:   charmap.CodePage855,
	858:   charmap.CodePage858,
	860:   charmap.CodePage860,
	862:   charmap.CodePage862,
	863:   charmap.CodePage863,
	865:   charmap.CodePage865,
	866:   charmap.CodePage866,
	874:   charmap.Windows874,
	20866: charmap.KOI8R,
	21866: charmap.KOI8U,
	28591: charmap.ISO8859_1,
	28592: charmap.ISO8859_2,
	28595: charmap.ISO8859_5,
	28597: charmap.ISO8859_7,
	28599: charmap.ISO8859_9,
	28605: charmap.ISO8859_15,
}

// New resolves a transcoder. A disabled transcoder, an empty target or a
// UTF-8 target yields Identity. target may be an encoding label
// ("windows-1251", "cp1252", "ISO-8859-1") or a numeric code page ("1251").
func New(enabled bool, target string) (Transcoder, error) {
	target = strings.TrimSpace(target)
	if !enabled || target == "" {
		return Identity, nil
	}

	enc, name, err := lookup(target)
	if err != nil {
		return nil, err
	}
	if enc == encoding.Nop || enc == nil {
		return Identity, nil
	}
	return &Codec{name: name, enc: enc}, nil
}

func lookup(target string) (encoding.Encoding, string, error) {
	if n, err := strconv.Atoi(target); err == nil {
		switch {
		case n == 65001:
			return encoding.Nop, "utf-8", nil
		case codePages[n] != nil:
			return codePages[n], "cp" + target, nil
		case n >= 1250 && n <= 1258:
			target = "windows-" + target
		default:
			return nil, "", fmt.Errorf("charset: unsupported code page %d", n)
		}
	}

	lower := strings.ToLower(target)
	if lower == "utf-8" || lower == "utf8" {
		return encoding.Nop, "utf-8", nil
	}

	if enc, err := htmlindex.Get(lower); err == nil {
		name, _ := htmlindex.Name(enc)
		if name == "utf-8" {
			return encoding.Nop, name, nil
		}
		return enc, name, nil
	}
	enc, err := ianaindex.IANA.Encoding(target)
	if err != nil || enc == nil {
		return nil, "", fmt.Errorf("charset: unknown encoding %q", target)
	}
	name, _ := ianaindex.IANA.Name(enc)
	return enc, name, nil
}
