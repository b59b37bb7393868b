package handlers

import "net/http"

// Routes wires both HTTP surfaces onto mux. publicMW wraps the
// unauthenticated visitor routes (rate limiting, CORS); the management
// routes always go through bearer-token auth.
func Routes(mux *http.ServeMux, public *PublicHandler, manage *ManageHandler, authSecret string, publicMW func(http.Handler) http.Handler) {
	if publicMW == nil {
		publicMW = func(h http.Handler) http.Handler { return h }
	}
	requireAuth := RequireAuth(authSecret)

	mux.Handle("GET /api/v1/public/slots", publicMW(http.HandlerFunc(public.Slots)))
	mux.Handle("POST /api/v1/public/reserve/{slotId}", publicMW(http.HandlerFunc(public.Reserve)))

	mux.Handle("POST /api/v1/availability", requireAuth(http.HandlerFunc(manage.PublishAvailability)))
	mux.Handle("DELETE /api/v1/availability/{slotId}", requireAuth(http.HandlerFunc(manage.WithdrawSlot)))
	mux.Handle("GET /api/v1/appointments", requireAuth(http.HandlerFunc(manage.ListAppointments)))
	mux.Handle("GET /api/v1/appointments/{id}", requireAuth(http.HandlerFunc(manage.GetAppointment)))
	mux.Handle("PUT /api/v1/appointments/{id}", requireAuth(http.HandlerFunc(manage.UpdateAppointment)))
}
