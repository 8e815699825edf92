package rbac

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gable-pm/gable/pkg/httputil"
	"github.com/gable-pm/gable/pkg/observability"
)

// ErrInviteNotFound is returned when an invite token is unknown, expired,
// or already redeemed.
var ErrInviteNotFound = errors.New("invite not found or already redeemed")

const (
	invitePrefix     = "invite:role:"
	defaultInviteTTL = 72 * time.Hour
	maxInviteTTL     = 30 * 24 * time.Hour
)

// InviteService issues single-use, time-limited role invite tokens backed
// by redis. Redemption consumes the token atomically, so an invite can
// never grant a role twice.
type InviteService struct {
	redis  *redis.Client
	store  *Store
	logger *observability.Logger
}

// NewInviteService creates an invite service
func NewInviteService(redisClient *redis.Client, store *Store, logger *observability.Logger) *InviteService {
	return &InviteService{redis: redisClient, store: store, logger: logger}
}

// CreateInvite stores a new invite token for roleID with the given TTL
func (s *InviteService) CreateInvite(ctx context.Context, roleID string, ttl time.Duration) (string, error) {
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("role not found: %s", roleID)
		}
		return "", err
	}
	if role.Status != StatusActive {
		return "", fmt.Errorf("role %s is not active", role.Name)
	}

	if ttl <= 0 {
		ttl = defaultInviteTTL
	}
	if ttl > maxInviteTTL {
		ttl = maxInviteTTL
	}

	token := uuid.NewString()
	if err := s.redis.Set(ctx, invitePrefix+token, roleID, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store invite: %w", err)
	}

	return token, nil
}

// RedeemInvite consumes an invite token and returns the role it grants.
// GETDEL makes redemption single-use even under concurrent redeems.
func (s *InviteService) RedeemInvite(ctx context.Context, token string) (string, error) {
	roleID, err := s.redis.GetDel(ctx, invitePrefix+token).Result()
	if err == redis.Nil {
		return "", ErrInviteNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to redeem invite: %w", err)
	}
	return roleID, nil
}

// InviteHandlers serves the invite link API
type InviteHandlers struct {
	service *InviteService
	logger  *observability.Logger
}

// NewInviteHandlers creates invite HTTP handlers
func NewInviteHandlers(service *InviteService, logger *observability.Logger) *InviteHandlers {
	return &InviteHandlers{service: service, logger: logger}
}

// RegisterRoutes registers invite routes on the router
func (h *InviteHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/roles/invite-link", h.CreateInvite).Methods("POST")
	router.HandleFunc("/api/roles/invite-link/redeem", h.RedeemInvite).Methods("POST")
}

// CreateInvite handles POST /api/roles/invite-link
func (h *InviteHandlers) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RoleID     string `json:"roleId"`
		TTLSeconds int    `json:"ttlSeconds,omitempty"`
	}
	if err := httputil.ParseJSON(r, &body); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if _, err := uuid.Parse(body.RoleID); err != nil {
		httputil.WriteBadRequest(w, "malformed roleId")
		return
	}

	ttl := time.Duration(body.TTLSeconds) * time.Second
	token, err := h.service.CreateInvite(r.Context(), body.RoleID, ttl)
	if err != nil {
		h.logger.WithError(err).Warn("invite creation rejected")
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	httputil.WriteCreated(w, map[string]interface{}{
		"token":  token,
		"roleId": body.RoleID,
	})
}

// RedeemInvite handles POST /api/roles/invite-link/redeem
func (h *InviteHandlers) RedeemInvite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := httputil.ParseJSON(r, &body); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	roleID, err := h.service.RedeemInvite(r.Context(), body.Token)
	if err != nil {
		if errors.Is(err, ErrInviteNotFound) {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		h.logger.WithError(err).Error("invite redemption failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"roleId": roleID,
	})
}
