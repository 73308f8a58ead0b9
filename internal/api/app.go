package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"github.com/quorumhq/boardroom/internal/config"
	"github.com/quorumhq/boardroom/internal/database"
	"github.com/quorumhq/boardroom/internal/server"
	"github.com/quorumhq/boardroom/internal/stats"
)

type BoardroomApp struct {
	log             *log.Logger
	db              database.BoardRepository
	mux             *http.Server
	ms              *server.MeetingServer
	stats           stats.StatsProvider
	signingKey      []byte
	allowedOrigins  []string
	generateShortId func() (string, error)
}

func NewBoardroomApp(mux *http.ServeMux, logger *log.Logger, ms *server.MeetingServer, db database.BoardRepository, sp stats.StatsProvider, cfg *config.Config) *BoardroomApp {
	s := &BoardroomApp{
		log:             logger,
		db:              db,
		ms:              ms,
		stats:           sp,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
	}

	mux.Handle("GET /healthz", http.HandlerFunc(s.healthCheck))
	mux.Handle("POST /api/accounts", s.authMiddleware(s.createAccount))
	mux.Handle("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("POST /api/companies", s.authMiddleware(s.createCompany))
	mux.Handle("GET /api/companies", s.authMiddleware(s.listCompanies))
	mux.Handle("POST /api/members", s.authMiddleware(s.addMember))
	mux.Handle("GET /api/members", s.authMiddleware(s.listMembers))
	mux.Handle("POST /api/meetings", s.authMiddleware(s.createMeeting))
	mux.Handle("GET /api/meetings", s.authMiddleware(s.listMeetings))
	mux.Handle("GET /api/meetings/{id}", s.authMiddleware(s.getMeeting))
	mux.Handle("POST /api/decisions", s.authMiddleware(s.createDecision))
	mux.Handle("GET /api/decisions", s.authMiddleware(s.listDecisions))
	mux.Handle("GET /api/tally", s.authMiddleware(s.getTally))
	mux.Handle("GET /api/attendance", s.authMiddleware(s.listAttendance))
	mux.Handle("GET /ws/meetings", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *BoardroomApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *BoardroomApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
