package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"sportsreg/internal/delivery/http/controllers"
	"sportsreg/internal/delivery/http/middleware"
	"sportsreg/internal/domain"
)

// NewRouter initializes the HTTP router with all application routes
func NewRouter(
	registrationController *controllers.RegistrationController,
	reviewController *controllers.ReviewController,
	authController *controllers.AuthController,
	verifier domain.TokenVerifier,
) *http.ServeMux {
	mux := http.NewServeMux()

	player := middleware.RequireRole(verifier, domain.RolePlayer)
	admin := middleware.RequireRole(verifier, domain.RoleAdmin)

	// Auth
	mux.HandleFunc("POST /api/auth/login", authController.Login)

	// Player registration
	mux.HandleFunc("GET /api/registration/available-events", player(registrationController.ListAvailableEvents))
	mux.HandleFunc("POST /api/registration/check-limits", player(registrationController.CheckLimits))
	mux.HandleFunc("POST /api/registration/register", player(registrationController.Register))
	mux.HandleFunc("GET /api/registration/my-registrations", player(registrationController.ListMyRegistrations))
	mux.HandleFunc("GET /api/registration/stats", player(registrationController.GetStats))
	mux.HandleFunc("DELETE /api/registration/{registrationID}", player(registrationController.Cancel))

	// Admin review
	mux.HandleFunc("GET /api/admin/registrations", admin(reviewController.ListPending))
	mux.HandleFunc("GET /api/admin/registrations/stats", admin(reviewController.GetStats))
	mux.HandleFunc("POST /api/admin/registrations/batch-review", admin(reviewController.BatchReview))
	mux.HandleFunc("POST /api/admin/registrations/{registrationID}/review", admin(reviewController.Review))
	mux.HandleFunc("GET /api/admin/registrations/{registrationID}/workflow", admin(reviewController.GetWorkflow))
	mux.HandleFunc("GET /api/admin/registrations/{registrationID}/history", admin(reviewController.GetHistory))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
