// Package sms implements transport-level segmentation of text messages.
//
// A body that fits the GSM 03.38 default alphabet is sent as 7-bit data:
// 160 septets in a single segment, 153 per segment once a concatenation
// header is needed. Anything else falls back to UCS-2: 70 UTF-16 code units
// alone, 67 per concatenated segment. Extension characters take two septets
// and surrogate pairs take two code units; neither is ever split across
// segments.
package sms

import (
	"strings"
	"unicode/utf16"
)

// Encoding is the data coding used on the wire
type Encoding int

const (
	GSM7 Encoding = iota
	UCS2
)

func (e Encoding) String() string {
	if e == GSM7 {
		return "gsm7"
	}
	return "ucs2"
}

const (
	gsmSingleLimit  = 160
	gsmSegmentLimit = 153
	ucsSingleLimit  = 70
	ucsSegmentLimit = 67
)

const gsmBasic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

const gsmExtension = "\f^{}\\[~]|€"

// Detect returns the encoding a sender would pick for body
func Detect(body string) Encoding {
	for _, r := range body {
		if !strings.ContainsRune(gsmBasic, r) && !strings.ContainsRune(gsmExtension, r) {
			return UCS2
		}
	}
	return GSM7
}

// unitCost is the size of r in the encoding's native units
func unitCost(r rune, enc Encoding) int {
	if enc == GSM7 {
		if strings.ContainsRune(gsmExtension, r) {
			return 2
		}
		return 1
	}
	return len(utf16.Encode([]rune{r}))
}

// Units returns the length of body in septets (GSM7) or UTF-16 code units (UCS2)
func Units(body string) (int, Encoding) {
	enc := Detect(body)
	n := 0
	for _, r := range body {
		n += unitCost(r, enc)
	}
	return n, enc
}

// FitsSingle reports whether body can be sent as one segment
func FitsSingle(body string) bool {
	n, enc := Units(body)
	if enc == GSM7 {
		return n <= gsmSingleLimit
	}
	return n <= ucsSingleLimit
}

// Divide splits body into ordered transport segments. A body that fits a
// single segment is returned as-is in a one-element slice; an empty body
// yields a single empty segment.
func Divide(body string) []string {
	if FitsSingle(body) {
		return []string{body}
	}

	enc := Detect(body)
	limit := ucsSegmentLimit
	if enc == GSM7 {
		limit = gsmSegmentLimit
	}

	var (
		parts   []string
		current strings.Builder
		used    int
	)
	for _, r := range body {
		cost := unitCost(r, enc)
		if used+cost > limit {
			parts = append(parts, current.String())
			current.Reset()
			used = 0
		}
		current.WriteRune(r)
		used += cost
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
