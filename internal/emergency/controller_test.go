package emergency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/rescueme/internal/dispatch"
	"github.com/danghamo/rescueme/internal/domain/contact"
	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/domain/route"
	"github.com/danghamo/rescueme/internal/storage"
	"github.com/danghamo/rescueme/internal/tracking"
	"github.com/danghamo/rescueme/pkg/logger"
)

// MockDispatcher for testing
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) SendEmergencyMessage(ctx context.Context, loc location.Point, contacts []contact.EmergencyContact, routes []route.PlannedRoute) dispatch.Report {
	args := m.Called(ctx, loc, contacts, routes)
	return args.Get(0).(dispatch.Report)
}

type stoppedTracker struct{}

func (stoppedTracker) State() tracking.State { return tracking.Stopped }

type env struct {
	ctx        context.Context
	backend    *storage.MemoryBackend
	locations  *location.Store
	contacts   *contact.Store
	routes     *route.Store
	dispatcher *MockDispatcher
	controller *Controller
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()
	backend := storage.NewMemoryBackend()
	e := &env{
		ctx:        ctx,
		backend:    backend,
		locations:  location.NewStore(ctx, backend, log, location.WithFlagRetry(3, time.Millisecond)),
		contacts:   contact.NewStore(ctx, backend, log),
		routes:     route.NewStore(ctx, backend, log),
		dispatcher: &MockDispatcher{},
	}
	e.controller = NewController(e.locations, e.contacts, e.routes, e.dispatcher, stoppedTracker{}, log)
	return e
}

func TestController_ActivateDispatchesStoredLocation(t *testing.T) {
	e := newEnv(t)
	here := location.Point{Latitude: 41.015137, Longitude: 28.979530}
	e.locations.SaveLocation(e.ctx, here)
	ayse := contact.EmergencyContact{ID: "1", Name: "Ayşe", PhoneNumber: "+905551112233"}
	require.True(t, e.contacts.Add(e.ctx, ayse))

	want := dispatch.Report{Status: dispatch.StatusSent, Attempted: 1, Delivered: 1}
	e.dispatcher.On("SendEmergencyMessage", mock.Anything, here, []contact.EmergencyContact{ayse}, []route.PlannedRoute{}).
		Return(want).Once()

	report, err := e.controller.Activate(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, want, report)
	assert.True(t, e.locations.GetEmergencyActive())
	assert.False(t, e.controller.Status().TrackingRunning)
	e.dispatcher.AssertExpectations(t)
}

func TestController_ActivateWithoutLocation(t *testing.T) {
	e := newEnv(t)

	report, err := e.controller.Activate(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusNoLocation, report.Status)
	assert.True(t, e.locations.GetEmergencyActive())
	e.dispatcher.AssertNotCalled(t, "SendEmergencyMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestController_ActivateFlagWriteFails(t *testing.T) {
	e := newEnv(t)
	e.locations.SaveLocation(e.ctx, location.Point{Latitude: 1, Longitude: 1})

	e.backend.FailWrites(-1)
	_, err := e.controller.Activate(e.ctx)
	require.Error(t, err)
	assert.False(t, e.locations.GetEmergencyActive())
	e.dispatcher.AssertNotCalled(t, "SendEmergencyMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestController_DeactivateSendsNothing(t *testing.T) {
	e := newEnv(t)
	e.locations.SaveLocation(e.ctx, location.Point{Latitude: 1, Longitude: 1})
	require.NoError(t, e.locations.SetEmergencyActive(e.ctx, true))

	require.NoError(t, e.controller.Deactivate(e.ctx))
	assert.False(t, e.locations.GetEmergencyActive())
	assert.False(t, e.controller.Status().Active)
	e.dispatcher.AssertNotCalled(t, "SendEmergencyMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestController_Status(t *testing.T) {
	e := newEnv(t)
	e.locations.SaveLocation(e.ctx, location.Point{Latitude: 2, Longitude: 3})
	require.True(t, e.routes.Add(e.ctx, route.PlannedRoute{ID: "r"}))

	st := e.controller.Status()
	require.NotNil(t, st.CurrentLocation)
	assert.Equal(t, 2.0, st.CurrentLocation.Latitude)
	assert.False(t, st.LastUpdateMillis.IsZero())
	assert.Equal(t, 0, st.ContactCount)
	assert.Equal(t, 1, st.RouteCount)
}
