// Package barcode cleans raw scanner input and recognises common retail symbologies.
//
// Recognition is informational only. Scan deduplication always compares the
// cleaned string exactly.
package barcode

import (
	"fmt"
	"strings"
	"unicode"
)

// Symbology names returned by Inspect.
const (
	EAN8    = "EAN-8"
	UPCA    = "UPC-A"
	EAN13   = "EAN-13"
	GTIN14  = "GTIN-14"
	GS1     = "GS1"
	Unknown = "unknown"
)

// Info is what Inspect could tell about a code.
type Info struct {
	Symbology    string
	CheckDigitOK bool
	Gtin14       string // (01) GTIN, zero padded to 14 digits
	ExpiryDate   string // (17) expiry as YYYYMM
	LotNumber    string // (10) lot
}

// aiLengths holds the maximum length of variable-length AIs (lot (10) only).
var aiLengths = map[string]int{
	"10": 20,
}

// Clean strips whitespace and control characters that keyboard-wedge scanners
// and manual entry leave around a code (CR, LF, TAB, GS).
func Clean(code string) string {
	return strings.TrimFunc(code, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
}

// Inspect guesses the symbology of a cleaned code.
func Inspect(code string) Info {
	if code == "" {
		return Info{Symbology: Unknown}
	}
	if len(code) >= 16 && strings.HasPrefix(code, "01") && isDigits(code[:16]) {
		info, err := parseAIString(code)
		if err != nil {
			return Info{Symbology: Unknown}
		}
		info.Symbology = GS1
		info.CheckDigitOK = validCheckDigit(info.Gtin14)
		return info
	}
	if !isDigits(code) {
		return Info{Symbology: Unknown}
	}

	switch n := len(code); {
	case n == 14:
		return Info{Symbology: GTIN14, Gtin14: code, CheckDigitOK: validCheckDigit(code)}
	case n == 13:
		return Info{Symbology: EAN13, Gtin14: "0" + code, CheckDigitOK: validCheckDigit(code)}
	case n == 12:
		return Info{Symbology: UPCA, Gtin14: "00" + code, CheckDigitOK: validCheckDigit(code)}
	case n == 8:
		return Info{Symbology: EAN8, Gtin14: fmt.Sprintf("%014s", code), CheckDigitOK: validCheckDigit(code)}
	}
	return Info{Symbology: Unknown}
}

// validCheckDigit applies the GS1 mod-10 rule shared by EAN/UPC/GTIN.
func validCheckDigit(code string) bool {
	if len(code) < 2 || !isDigits(code) {
		return false
	}
	sum := 0
	body := code[:len(code)-1]
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if (len(body)-1-i)%2 == 0 {
			d *= 3
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return check == int(code[len(code)-1]-'0')
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// parseAIString reads the (01), (17) and (10) application identifiers.
func parseAIString(code string) (Info, error) {
	var result Info
	i := 0
	length := len(code)

	for i < length {
		// (01) GTIN, 14 digits
		if strings.HasPrefix(code[i:], "01") && result.Gtin14 == "" {
			if i+16 > length {
				return Info{}, fmt.Errorf("AI(01) data too short")
			}
			result.Gtin14 = code[i+2 : i+16]
			i += 16
			continue
		}

		// (17) expiry YYMMDD, stored as YYYYMM
		if strings.HasPrefix(code[i:], "17") && result.ExpiryDate == "" {
			if i+8 > length {
				return Info{}, fmt.Errorf("AI(17) data too short")
			}
			yymmdd := code[i+2 : i+8]
			result.ExpiryDate = "20" + yymmdd[0:2] + yymmdd[2:4]
			i += 8
			continue
		}

		// (10) lot, variable length up to the next complete AI
		if strings.HasPrefix(code[i:], "10") && result.LotNumber == "" {
			dataStart := i + 2
			dataEnd := dataStart
			maxLength := aiLengths["10"]

			for dataEnd < length {
				if dataEnd-dataStart >= maxLength {
					break
				}
				remaining := code[dataEnd:]
				if len(remaining) >= 2 {
					nextAI := remaining[:2]
					if nextAI == "01" && len(remaining) >= 16 {
						break
					}
					if nextAI == "17" && len(remaining) >= 8 {
						break
					}
				}
				dataEnd++
			}

			result.LotNumber = code[dataStart:dataEnd]
			i = dataEnd
			continue
		}

		i++
	}

	if result.Gtin14 == "" {
		return Info{}, fmt.Errorf("no AI(01) GTIN found")
	}
	return result, nil
}
