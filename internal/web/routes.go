package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes(sessionManager *middleware.SessionManager, deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.Users, sessionManager, deps.Logger)
	attendanceHandler := handlers.NewAttendanceHandler(deps.Service, deps.Store, deps.Pipeline, deps.Logger)
	streamHandler := handlers.NewStreamHandler(deps.Pipeline, deps.Logger)
	enrollHandler := handlers.NewEnrollHandler(
		s.config.Gallery.ReferenceDir,
		s.config.Gallery.CachePath,
		deps.Gallery,
		deps.Extractor,
		deps.Logger,
	)

	// Health check (no auth required).
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes.
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// Everything else requires a session.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessionManager))

			// Live video feed and attendance submission.
			r.Get("/video", streamHandler.Video)
			r.Post("/attendance/stream", attendanceHandler.SubmitStream)
			r.Post("/attendance/photo", attendanceHandler.SubmitPhoto)

			// Attendance records (scoped by role inside the handler).
			r.Get("/attendance", attendanceHandler.List)

			// Admin-only operations.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/attendance/summary", attendanceHandler.Summary)
				r.Get("/attendance/{name}", attendanceHandler.Person)
				r.Post("/enroll", enrollHandler.Enroll)
			})
		})
	})
}
