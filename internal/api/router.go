package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/zavetisce/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	facilitiesHandler := &FacilitiesHandler{DB: db}
	occupancyHandler := &OccupancyHandler{DB: db}
	stockHandler := &StockHandler{DB: db}
	requestsHandler := &RequestsHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireCoordinator := RequireRole(model.RoleCoordinator)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Facilities: read (all roles), write (coordinator+).
	mux.Handle("GET /api/facilities", authMW(http.HandlerFunc(facilitiesHandler.List)))
	mux.Handle("POST /api/facilities", authMW(requireCoordinator(http.HandlerFunc(facilitiesHandler.Create))))
	mux.Handle("GET /api/facilities/{id}", authMW(http.HandlerFunc(facilitiesHandler.Get)))
	mux.Handle("PUT /api/facilities/{id}", authMW(requireCoordinator(http.HandlerFunc(facilitiesHandler.Update))))
	mux.Handle("DELETE /api/facilities/{id}", authMW(requireCoordinator(http.HandlerFunc(facilitiesHandler.Delete))))
	mux.Handle("PUT /api/facilities/{id}/photo", authMW(requireCoordinator(http.HandlerFunc(facilitiesHandler.UploadPhoto))))
	mux.Handle("GET /api/facilities/{id}/photo", authMW(http.HandlerFunc(facilitiesHandler.GetPhoto)))
	mux.Handle("GET /api/facilities/{id}/stock", authMW(http.HandlerFunc(facilitiesHandler.GetStock)))

	// Occupancy ledger: read (all roles), append (coordinator+).
	mux.Handle("POST /api/facilities/{id}/occupancy", authMW(requireCoordinator(http.HandlerFunc(occupancyHandler.Append))))
	mux.Handle("GET /api/facilities/{id}/occupancy", authMW(http.HandlerFunc(occupancyHandler.Snapshot)))
	mux.Handle("GET /api/facilities/{id}/occupancy/history", authMW(http.HandlerFunc(occupancyHandler.History)))
	mux.Handle("GET /api/facilities/{id}/occupancy/events", authMW(http.HandlerFunc(occupancyHandler.Events)))
	mux.Handle("GET /api/occupancy/history", authMW(http.HandlerFunc(occupancyHandler.FleetHistory)))

	// Stock: read (all roles), write (coordinator+).
	mux.Handle("GET /api/stock", authMW(http.HandlerFunc(stockHandler.List)))
	mux.Handle("POST /api/stock", authMW(requireCoordinator(http.HandlerFunc(stockHandler.Create))))
	mux.Handle("POST /api/stock/upsert", authMW(requireCoordinator(http.HandlerFunc(stockHandler.Upsert))))
	mux.Handle("GET /api/stock/{id}", authMW(http.HandlerFunc(stockHandler.Get)))

	// Resource requests: create/read (all roles), decide (coordinator+).
	mux.Handle("POST /api/requests", authMW(http.HandlerFunc(requestsHandler.Create)))
	mux.Handle("GET /api/requests", authMW(http.HandlerFunc(requestsHandler.List)))
	mux.Handle("GET /api/requests/{id}", authMW(http.HandlerFunc(requestsHandler.Get)))
	mux.Handle("GET /api/requests/{id}/disbursements", authMW(http.HandlerFunc(requestsHandler.Disbursements)))
	mux.Handle("POST /api/requests/{id}/approve", authMW(requireCoordinator(http.HandlerFunc(requestsHandler.Approve))))
	mux.Handle("POST /api/requests/{id}/reject", authMW(requireCoordinator(http.HandlerFunc(requestsHandler.Reject))))
	mux.Handle("POST /api/requests/{id}/receive", authMW(requireCoordinator(http.HandlerFunc(requestsHandler.Receive))))

	return mux
}
