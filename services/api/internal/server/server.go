// Package server exposes the StoryVerse HTTP API. Routes are flat and
// JSON-only; payment routes answer with the {status, message} envelope the
// web client expects.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"storyverse/internal/util"
	"storyverse/pkg/checkout"
	"storyverse/pkg/domain"
	"storyverse/pkg/entitlement"
	"storyverse/services/api/internal/app"
)

// Limiter gates a request key against a quota.
type Limiter interface {
	Allow(key string) bool
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// AuthLimiter throttles /register and /login; OrderLimiter throttles
	// /create-order. Nil disables the respective limit.
	AuthLimiter  Limiter
	OrderLimiter Limiter
}

// Server exposes HTTP endpoints for the API service.
type Server struct {
	app          *app.App
	authLimiter  Limiter
	orderLimiter Limiter
	mux          *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:          cfg.App,
		authLimiter:  cfg.AuthLimiter,
		orderLimiter: cfg.OrderLimiter,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler wrapped in the middleware chain.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.mux
	handler = util.WithRequestLog("api", handler)
	handler = util.WithRequestID(handler)
	handler = util.WithSecurityHeaders(handler)
	handler = util.WithCORS(handler)
	return handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// accounts
	s.mux.Handle("/register", s.limited(s.authLimiter, http.HandlerFunc(s.handleRegister)))
	s.mux.Handle("/login", s.limited(s.authLimiter, http.HandlerFunc(s.handleLogin)))
	s.mux.Handle("/get-user/", s.authenticated(s.handleGetUser))
	s.mux.Handle("/update-user/", s.authenticated(s.handleUpdateUser))

	// catalog
	s.mux.HandleFunc("/library", s.handleLibrary)
	s.mux.HandleFunc("/get-book/", s.handleGetBook)
	s.mux.Handle("/update-book/", s.authenticated(s.handleUpdateBook))
	s.mux.Handle("/my-collection", s.authenticated(s.handleMyCollection))
	s.mux.Handle("/download-book/", s.authenticated(s.handleDownloadBook))
	s.mux.HandleFunc("/contact", s.handleContact)

	// payments
	s.mux.Handle("/create-order", s.limited(s.orderLimiter, s.authenticated(s.handleCreateOrder)))
	s.mux.Handle("/verify-membership", s.authenticated(s.handleVerifyMembership))
	s.mux.Handle("/record-purchase", s.authenticated(s.handleRecordPurchase))
	s.mux.Handle("/claim-premium", s.authenticated(s.handleClaimPremium))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) limited(limiter Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(util.ClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// account handlers

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, token, err := s.app.Register(req.Name, req.Email, req.Password)
	if err != nil {
		slog.Info("audit", "event", "register", "outcome", "failure", "ip", util.ClientIP(r))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Info("audit", "event", "register", "outcome", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, sessionResponse{Status: "ok", User: user, Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		slog.Info("audit", "event", "login", "outcome", "failure", "ip", util.ClientIP(r))
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	slog.Info("audit", "event", "login", "outcome", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, sessionResponse{Status: "ok", User: user, Token: token})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, caller domain.User) {
	id, ok := pathID(w, r, "/get-user/")
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if id != caller.ID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	user, err := s.app.GetUser(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Status: "ok", User: user})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, caller domain.User) {
	id, ok := pathID(w, r, "/update-user/")
	if !ok {
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	if id != caller.ID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	var req updateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.app.UpdateProfile(id, req.Name, req.Email)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Status: "ok", User: user})
}

// catalog handlers

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.Library()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booksResponse{Status: "ok", Books: books})
}

// handleGetBook serves anonymous viewers too: the access state is resolved
// against a fresh-account projection when no valid token is present.
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "/get-book/")
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var userID string
	if token, ok := bearerToken(r); ok {
		if user, ok := s.app.UserFromToken(token); ok {
			userID = user.ID
		}
	}
	view, err := s.app.GetBookView(r.Context(), userID, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookViewResponse{
		Status:      "ok",
		Book:        view.Book,
		AccessState: view.AccessState,
		Price:       view.Price,
	})
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request, _ domain.User) {
	id, ok := pathID(w, r, "/update-book/")
	if !ok {
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req updateBookRequest
	if !decodeBody(w, r, &req) {
		return
	}
	book, err := s.app.UpdateBookFeedback(id, req.Rating, req.Review)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookResponse{Status: "ok", Book: book})
}

func (s *Server) handleMyCollection(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.MyCollection(caller.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booksResponse{Status: "ok", Books: books})
}

func (s *Server) handleDownloadBook(w http.ResponseWriter, r *http.Request, caller domain.User) {
	id, ok := pathID(w, r, "/download-book/")
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	url, err := s.app.DownloadBook(r.Context(), caller.ID, id)
	if err != nil {
		slog.Info("audit", "event", "download", "outcome", "denied", "user_id", caller.ID, "book_id", id)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, downloadResponse{Status: "ok", URL: url})
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req contactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.app.Contact(req.Name, req.Email, req.Subject, req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: "message received"})
}

// payment handlers

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	order, err := s.app.CreateOrder(r.Context(), req.Amount)
	if err != nil {
		slog.Warn("audit", "event", "create_order", "outcome", "failure", "user_id", caller.ID, "err", err)
		writeAppError(w, err)
		return
	}
	slog.Info("audit", "event", "create_order", "outcome", "success", "user_id", caller.ID, "order_id", order.ID, "amount", order.Amount)
	writeJSON(w, http.StatusOK, orderResponse{Status: "ok", Order: order})
}

func (s *Server) handleVerifyMembership(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req verifyMembershipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	plan, ok := domain.ParsePlanType(req.Plan)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown plan")
		return
	}
	err := s.app.VerifyMembership(r.Context(), caller.ID, plan, domain.Attestation{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		slog.Warn("audit", "event", "verify_membership", "outcome", "failure", "user_id", caller.ID, "order_id", req.OrderID, "err", err)
		writeAppError(w, err)
		return
	}
	slog.Info("audit", "event", "verify_membership", "outcome", "success", "user_id", caller.ID, "plan", plan)
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: "membership activated"})
}

func (s *Server) handleRecordPurchase(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req recordPurchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.app.RecordPurchase(r.Context(), caller.ID, req.BookID, domain.Attestation{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		slog.Warn("audit", "event", "record_purchase", "outcome", "failure", "user_id", caller.ID, "book_id", req.BookID, "err", err)
		writeAppError(w, err)
		return
	}
	slog.Info("audit", "event", "record_purchase", "outcome", "success", "user_id", caller.ID, "book_id", req.BookID)
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: "purchase recorded"})
}

func (s *Server) handleClaimPremium(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req claimPremiumRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.app.ClaimPremium(r.Context(), caller.ID, req.BookID); err != nil {
		slog.Warn("audit", "event", "claim_premium", "outcome", "failure", "user_id", caller.ID, "book_id", req.BookID, "err", err)
		writeAppError(w, err)
		return
	}
	slog.Info("audit", "event", "claim_premium", "outcome", "success", "user_id", caller.ID, "book_id", req.BookID)
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: "premium book claimed"})
}

// request/response shapes

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type updateBookRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type createOrderRequest struct {
	Amount int64 `json:"amount"`
}

type verifyMembershipRequest struct {
	Plan      string `json:"plan"`
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type recordPurchaseRequest struct {
	BookID    string `json:"bookId"`
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type claimPremiumRequest struct {
	BookID string `json:"bookId"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type sessionResponse struct {
	Status string      `json:"status"`
	User   domain.User `json:"user"`
	Token  string      `json:"token"`
}

type userResponse struct {
	Status string      `json:"status"`
	User   domain.User `json:"user"`
}

type booksResponse struct {
	Status string        `json:"status"`
	Books  []domain.Book `json:"books"`
}

type bookResponse struct {
	Status string      `json:"status"`
	Book   domain.Book `json:"book"`
}

type bookViewResponse struct {
	Status      string             `json:"status"`
	Book        domain.Book        `json:"book"`
	AccessState domain.AccessState `json:"accessState"`
	Price       int64              `json:"price"`
}

type downloadResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}

type orderResponse struct {
	Status string       `json:"status"`
	Order  domain.Order `json:"order"`
}

// helpers

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func pathID(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return "", false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// writeAppError maps domain sentinels to statuses. Provider and unexpected
// errors never leak detail to clients.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entitlement.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, entitlement.ErrBookNotFound):
		writeError(w, http.StatusNotFound, "book not found")
	case errors.Is(err, entitlement.ErrNotAMember):
		writeError(w, http.StatusForbidden, "membership required")
	case errors.Is(err, entitlement.ErrNotClaimable):
		writeError(w, http.StatusBadRequest, "book is not a premium title")
	case errors.Is(err, entitlement.ErrNotPurchasable):
		writeError(w, http.StatusBadRequest, "premium books cannot be bought individually")
	case errors.Is(err, checkout.ErrVerificationFailed):
		writeError(w, http.StatusBadRequest, "payment verification failed")
	case errors.Is(err, checkout.ErrAmountMismatch):
		writeError(w, http.StatusBadRequest, "paid amount does not match the price")
	case errors.Is(err, checkout.ErrPlanNotPurchasable):
		writeError(w, http.StatusBadRequest, "plan cannot be purchased")
	case errors.Is(err, checkout.ErrProvider):
		writeError(w, http.StatusBadGateway, "payment service unavailable, please try again")
	case errors.Is(err, app.ErrNotOwned):
		writeError(w, http.StatusForbidden, "book not in your collection")
	case errors.Is(err, app.ErrNoContent):
		writeError(w, http.StatusNotFound, "no downloadable content")
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, statusResponse{Status: "error", Message: msg})
}
