package message

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/domain/route"
)

var istanbul = location.Point{Latitude: 41.015137, Longitude: 28.979530}

func makeRoutes(n int) []route.PlannedRoute {
	routes := make([]route.PlannedRoute, n)
	for i := range routes {
		routes[i] = route.PlannedRoute{
			ID:            fmt.Sprintf("r%d", i),
			Name:          fmt.Sprintf("Rota %d", i+1),
			StartLocation: location.Point{Latitude: 41.1 + float64(i), Longitude: 29.12346},
			EndLocation:   location.Point{Latitude: 41.2, Longitude: 29.98767},
		}
	}
	return routes
}

func TestCompose_NoRoutes(t *testing.T) {
	msg := Compose(istanbul, nil)

	assert.True(t, strings.HasPrefix(msg, "🚨 ACİL DURUM - KAYBOLDUM!\n\n"))
	assert.Contains(t, msg, "Bu mesaj RescueMe uygulaması tarafından otomatik gönderilmiştir.")
	assert.Contains(t, msg, "Enlem: 41.015137\n")
	assert.Contains(t, msg, "Boylam: 28.979530\n")
	assert.Contains(t, msg, "https://maps.google.com/?q=41.015137,28.97953")
	assert.NotContains(t, msg, "Planlanan Rotalarım")
	assert.True(t, strings.HasSuffix(msg, "Mümkünse arayın veya yetkililere haber verin."))
}

func TestCompose_TruncatesToTwoRoutes(t *testing.T) {
	msg := Compose(istanbul, makeRoutes(5))

	assert.Equal(t, 1, strings.Count(msg, "Planlanan Rotalarım:\n"))
	assert.Equal(t, 2, strings.Count(msg, "📍 "))
	assert.Contains(t, msg, "📍 Rota 1\n")
	assert.Contains(t, msg, "📍 Rota 2\n")
	assert.NotContains(t, msg, "Rota 3")
	assert.Contains(t, msg, "   Başlangıç: 41.1000, 29.1235\n")
	assert.Contains(t, msg, "   Bitiş: 41.2000, 29.9877\n")
}

func TestCompose_RouteDescription(t *testing.T) {
	routes := makeRoutes(2)
	routes[0].Description = "sahil yolu"
	routes[1].Description = "   "

	msg := Compose(istanbul, routes)
	assert.Contains(t, msg, "📍 Rota 1: sahil yolu\n")
	assert.Contains(t, msg, "📍 Rota 2\n")
}

func TestCompose_ExactLayout(t *testing.T) {
	routes := []route.PlannedRoute{{
		Name:          "Ev",
		Description:   "işten eve",
		StartLocation: location.Point{Latitude: 1, Longitude: 2},
		EndLocation:   location.Point{Latitude: 3, Longitude: 4},
	}}

	want := "🚨 ACİL DURUM - KAYBOLDUM!\n\n" +
		"Bu mesaj RescueMe uygulaması tarafından otomatik gönderilmiştir.\n\n" +
		"Güncel Konumum:\n" +
		"Enlem: 41.015137\n" +
		"Boylam: 28.979530\n" +
		"Google Maps: https://maps.google.com/?q=41.015137,28.97953\n\n" +
		"Planlanan Rotalarım:\n" +
		"📍 Ev: işten eve\n" +
		"   Başlangıç: 1.0000, 2.0000\n" +
		"   Bitiş: 3.0000, 4.0000\n" +
		"\n" +
		"⚠️ LÜTFEN YARDIM EDİN!\n" +
		"Bu acil durum mesajıdır. Mümkünse arayın veya yetkililere haber verin."

	assert.Equal(t, want, Compose(istanbul, routes))
	assert.Equal(t, Compose(istanbul, routes), Compose(istanbul, routes))
}
