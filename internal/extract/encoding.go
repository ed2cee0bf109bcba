package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// namedEncoding pairs an encoding label with its decoder. A nil decoder
// means raw UTF-8 validation.
type namedEncoding struct {
	name string
	enc  encoding.Encoding
}

// fallbackEncodings is the decode order for text and CSV files. Labels
// mirror the encodings the service has historically accepted.
var fallbackEncodings = []namedEncoding{
	{"utf-8-sig", nil},
	{"utf-8", nil},
	{"cp932", japanese.ShiftJIS},
	{"shift_jis", japanese.ShiftJIS},
	{"euc_jp", japanese.EUCJP},
	{"iso2022_jp", japanese.ISO2022JP},
}

// decodeWithFallback tries each encoding in order; the first clean decode
// wins. If all fail, the bytes are decoded under the first encoding with
// invalid sequences replaced and decode_errors_replaced is appended to the
// returned warnings. Newlines are normalised to \n.
func decodeWithFallback(data []byte) (text, usedEncoding string, warnings []string) {
	for _, ne := range fallbackEncodings {
		decoded, ok := tryDecode(data, ne)
		if ok {
			return normalizeNewlines(decoded), ne.name, nil
		}
	}

	// Last resort: first encoding with replacement.
	first := fallbackEncodings[0]
	decoded := decodeReplacing(data, first)
	return normalizeNewlines(decoded), first.name, []string{WarnDecodeErrorsReplaced}
}

// tryDecode decodes strictly: any invalid input sequence fails the attempt.
func tryDecode(data []byte, ne namedEncoding) (string, bool) {
	if ne.enc == nil {
		b := data
		if ne.name == "utf-8-sig" {
			b = bytes.TrimPrefix(b, utf8BOM)
		} else if bytes.HasPrefix(b, utf8BOM) {
			// Plain utf-8 keeps a BOM as content only when valid; a BOM'd
			// file will already have matched utf-8-sig.
			b = bytes.TrimPrefix(b, utf8BOM)
		}
		if !utf8.Valid(b) {
			return "", false
		}
		return string(b), true
	}

	decoded, err := ne.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	// x/text decoders substitute U+FFFD for undecodable input instead of
	// erroring; treat any substitution as a failed strict decode.
	if strings.ContainsRune(string(decoded), utf8.RuneError) {
		return "", false
	}
	return string(decoded), true
}

// decodeReplacing decodes with invalid sequences replaced by U+FFFD.
func decodeReplacing(data []byte, ne namedEncoding) string {
	if ne.enc == nil {
		b := bytes.TrimPrefix(data, utf8BOM)
		return string(bytes.ToValidUTF8(b, []byte(string(utf8.RuneError))))
	}
	decoded, err := ne.enc.NewDecoder().Bytes(data)
	if err != nil {
		// Decoder refused outright; fall back to lossy UTF-8.
		return string(bytes.ToValidUTF8(data, []byte(string(utf8.RuneError))))
	}
	return string(decoded)
}
