// Package message builds the text bodies sent to emergency contacts.
package message

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/domain/route"
)

// MaxRoutes is how many planned routes an emergency message lists
const MaxRoutes = 2

// TestText is sent by the contact verification flow
const TestText = "RescueMe test mesajı. Uygulama düzgün çalışıyor."

const (
	banner      = "🚨 ACİL DURUM - KAYBOLDUM!\n\n"
	attribution = "Bu mesaj RescueMe uygulaması tarafından otomatik gönderilmiştir.\n\n"
	footer      = "⚠️ LÜTFEN YARDIM EDİN!\n" +
		"Bu acil durum mesajıdır. Mümkünse arayın veya yetkililere haber verin."
)

// MapsURL links to loc on Google Maps
func MapsURL(loc location.Point) string {
	return "https://maps.google.com/?q=" +
		strconv.FormatFloat(loc.Latitude, 'f', -1, 64) + "," +
		strconv.FormatFloat(loc.Longitude, 'f', -1, 64)
}

// Compose builds the emergency message for loc and the first MaxRoutes routes.
// It has no side effects; equal inputs give byte-identical output.
func Compose(loc location.Point, routes []route.PlannedRoute) string {
	var b strings.Builder

	b.WriteString(banner)
	b.WriteString(attribution)

	b.WriteString("Güncel Konumum:\n")
	fmt.Fprintf(&b, "Enlem: %.6f\n", loc.Latitude)
	fmt.Fprintf(&b, "Boylam: %.6f\n", loc.Longitude)
	fmt.Fprintf(&b, "Google Maps: %s\n\n", MapsURL(loc))

	if len(routes) > 0 {
		b.WriteString("Planlanan Rotalarım:\n")
		for _, r := range lo.Slice(routes, 0, MaxRoutes) {
			b.WriteString("📍 " + r.Name)
			if strings.TrimSpace(r.Description) != "" {
				b.WriteString(": " + r.Description)
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "   Başlangıç: %.4f, %.4f\n", r.StartLocation.Latitude, r.StartLocation.Longitude)
			fmt.Fprintf(&b, "   Bitiş: %.4f, %.4f\n", r.EndLocation.Latitude, r.EndLocation.Longitude)
		}
		b.WriteString("\n")
	}

	b.WriteString(footer)
	return b.String()
}
