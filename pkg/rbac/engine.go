package rbac

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gable-pm/gable/pkg/audit"
	"github.com/gable-pm/gable/pkg/auth"
	"github.com/gable-pm/gable/pkg/contextkeys"
	"github.com/gable-pm/gable/pkg/observability"
)

// AuditRecorder appends a reassignment record through the engine's
// transaction.
type AuditRecorder interface {
	Append(ctx context.Context, q audit.Querier, record *audit.ReassignmentRecord) error
}

// Engine orchestrates the reassignment validation pipeline and the atomic
// write. It is the only writer of users.role_id and the exclusive producer
// of reassignment audit records.
type Engine struct {
	db         *sql.DB
	store      *Store
	recorder   AuditRecorder
	classifier *Classifier
	comparator *Comparator
	probe      MigrationProbe
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewEngine creates a reassignment engine
func NewEngine(db *sql.DB, store *Store, recorder AuditRecorder, probe MigrationProbe, logger *observability.Logger) *Engine {
	return &Engine{
		db:         db,
		store:      store,
		recorder:   recorder,
		classifier: NewClassifier(),
		comparator: NewComparator(store),
		probe:      probe,
		logger:     logger,
	}
}

// SetMetrics attaches transaction metrics. A nil receiver argument leaves
// the engine unmetered.
func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.metrics = m
}

// Reassign moves a user from one role to another through the ordered
// validation pipeline, then commits the user mutation and its audit
// record in one transaction. Validation failures never write; the
// transaction either applies both changes or neither.
func (e *Engine) Reassign(ctx context.Context, req ReassignRequest, actor *auth.Context) (*ReassignResult, error) {
	if err := validateRequest(&req); err != nil {
		e.warn(ctx, actor, req, err)
		return nil, err
	}

	// Step 1: resolve the user
	user, err := e.store.GetUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = NewError(CodeUserNotFound, "user not found: %s", req.UserID)
			e.warn(ctx, actor, req, err)
			return nil, err
		}
		return nil, e.internal(ctx, actor, req, err)
	}

	// Step 2: the claimed source role must be the user's current role
	if user.RoleID != req.FromRoleID {
		err = NewError(CodeUserRoleMismatch,
			"user %s does not currently hold role %s", req.UserID, req.FromRoleID)
		e.warn(ctx, actor, req, err)
		return nil, err
	}

	// Step 3: source role must exist and be ACTIVE
	fromRole, err := e.store.GetRole(ctx, req.FromRoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = NewError(CodeSourceRoleNotActive, "source role not found: %s", req.FromRoleID)
			e.warn(ctx, actor, req, err)
			return nil, err
		}
		return nil, e.internal(ctx, actor, req, err)
	}
	if fromRole.Status != StatusActive {
		err = NewError(CodeSourceRoleNotActive,
			"source role %s has status %s", fromRole.Name, fromRole.Status)
		e.warn(ctx, actor, req, err)
		return nil, err
	}

	// Step 4: target role must exist and be assignable by this actor
	toRole, err := e.store.GetRole(ctx, req.ToRoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = NewError(CodeTargetRoleNotFound, "target role not found: %s", req.ToRoleID)
			e.warn(ctx, actor, req, err)
			return nil, err
		}
		return nil, e.internal(ctx, actor, req, err)
	}
	if err := targetAssignable(toRole, actor); err != nil {
		e.warn(ctx, actor, req, err)
		return nil, err
	}

	// Step 5: reject no-op reassignment
	if req.ToRoleID == req.FromRoleID {
		err = NewError(CodeSameRole, "user already holds role %s", fromRole.Name)
		e.warn(ctx, actor, req, err)
		return nil, err
	}

	// Step 7 needs the permission sets, so the comparison runs before the
	// category check can consult permission footprints.
	comparison := e.comparator.Compare(ctx, req.FromRoleID, req.ToRoleID)
	if comparison.Delta.LookupError != "" {
		err = NewError(CodePermissionLookupFailed,
			"permission lookup failed: %s", comparison.Delta.LookupError)
		e.error(ctx, actor, req, err)
		return nil, err
	}

	// Step 6: category equivalence, enforced only once the schema carries
	// the category attribute
	categoryChange := CategoryChange{From: string(CategoryUnknown), To: string(CategoryUnknown)}
	migrationApplied := e.probe == nil || e.probe.CategoryMigrationApplied(ctx)
	if migrationApplied {
		fromCat := e.classifier.CategoryOf(fromRole, comparison.FromSet)
		toCat := e.classifier.CategoryOf(toRole, comparison.ToSet)
		categoryChange = CategoryChange{From: string(fromCat), To: string(toCat)}

		if e.classifier.Equal(fromCat, toCat) {
			err = NewError(CodeSameCategory,
				"both roles classify as %s, reassignment would not change authority class", fromCat)
			e.warn(ctx, actor, req, err)
			return nil, err
		}
	}

	// Step 7: the move must change effective authority
	if comparison.Equivalent {
		err = NewError(CodeEquivalentPermissions,
			"roles %s and %s grant identical permissions", fromRole.Name, toRole.Name)
		e.warn(ctx, actor, req, err)
		return nil, err
	}

	// Step 8: the delta is already computed; it gates nothing past here
	if err := e.commit(ctx, user, fromRole, toRole, req.Reason, actor, comparison, categoryChange, migrationApplied); err != nil {
		return nil, e.internal(ctx, actor, req, err)
	}

	user.RoleID = toRole.ID
	return &ReassignResult{
		User:            user,
		PreviousRoleID:  fromRole.ID,
		NewRoleID:       toRole.ID,
		Reason:          req.Reason,
		CategoryChange:  categoryChange,
		PermissionDelta: comparison.Delta.Counts(),
	}, nil
}

// commit performs the atomic write: user mutation, post-update role status
// re-check, and audit append, all inside one transaction.
func (e *Engine) commit(ctx context.Context, user *User, fromRole, toRole *Role, reason string,
	actor *auth.Context, comparison Comparison, categoryChange CategoryChange, migrationApplied bool) error {

	txStart := time.Now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if err := e.store.UpdateUserRole(ctx, tx, user.ID, toRole.ID, now); err != nil {
		return err
	}

	// Re-read the resolved role inside the transaction. A concurrent
	// deactivation between validation and commit must abort the write.
	status, err := e.store.UserRoleStatus(ctx, tx, user.ID)
	if err != nil {
		return err
	}
	if !statusCommittable(status, actor) {
		return errors.New("target role is no longer assignable")
	}

	auditCtx := map[string]interface{}{
		"permission_delta": comparison.Delta,
		"category_change":  categoryChange,
	}
	if !migrationApplied {
		auditCtx["category_check"] = "migration-pending"
	}

	actorID, actorUsername := actorIdentity(actor)
	record := &audit.ReassignmentRecord{
		OccurredAt:     now,
		ActorID:        actorID,
		ActorUsername:  actorUsername,
		RoleID:         toRole.ID,
		RoleName:       toRole.Name,
		PreviousStatus: string(fromRole.Status),
		NewStatus:      string(toRole.Status),
		AffectedUsers: []audit.AffectedUser{
			{ID: user.ID, Username: user.Username, Email: user.Email},
		},
		ReassignmentMap: map[string]string{user.ID: toRole.ID},
		Reason:          reason,
		Context:         auditCtx,
	}

	if err := e.recorder.Append(ctx, tx, record); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.ObserveCommit(time.Since(txStart))
	}
	return nil
}

// validateRequest rejects malformed input before any lookup and applies
// the reason default.
func validateRequest(req *ReassignRequest) error {
	if _, err := uuid.Parse(req.UserID); err != nil {
		return NewError(CodeValidationError, "malformed user id: %s", req.UserID)
	}
	if _, err := uuid.Parse(req.FromRoleID); err != nil {
		return NewError(CodeValidationError, "malformed fromRoleId: %s", req.FromRoleID)
	}
	if _, err := uuid.Parse(req.ToRoleID); err != nil {
		return NewError(CodeValidationError, "malformed toRoleId: %s", req.ToRoleID)
	}

	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		req.Reason = DefaultReason
	}
	return nil
}

// targetAssignable enforces the target status rule: ACTIVE is always
// assignable, SYSTEM_LOCKED only by a system administrator.
func targetAssignable(toRole *Role, actor *auth.Context) error {
	switch toRole.Status {
	case StatusActive:
		return nil
	case StatusSystemLocked:
		if actor != nil && actor.IsSystemAdmin {
			return nil
		}
		return NewError(CodeSystemLockedRole,
			"role %s is system locked and requires a system administrator", toRole.Name)
	default:
		return NewError(CodeTargetNotActive,
			"target role %s has status %s", toRole.Name, toRole.Status)
	}
}

// actorIdentity resolves the audit identifiers for an actor. The credential
// ID and the username are recorded separately; when no credential ID is
// available the username stands in so actor_id is never empty.
func actorIdentity(actor *auth.Context) (id, username string) {
	if actor == nil {
		return "", ""
	}
	id = actor.ID
	if id == "" {
		id = actor.Username
	}
	return id, actor.Username
}

func statusCommittable(status RoleStatus, actor *auth.Context) bool {
	if status == StatusActive {
		return true
	}
	return status == StatusSystemLocked && actor != nil && actor.IsSystemAdmin
}

func (e *Engine) warn(ctx context.Context, actor *auth.Context, req ReassignRequest, err error) {
	e.requestLogger(ctx, actor, req).WithField("code", string(CodeOf(err))).
		WithError(err).Warn("reassignment rejected")
}

func (e *Engine) error(ctx context.Context, actor *auth.Context, req ReassignRequest, err error) {
	e.requestLogger(ctx, actor, req).WithField("code", string(CodeOf(err))).
		WithError(err).Error("reassignment failed")
}

func (e *Engine) internal(ctx context.Context, actor *auth.Context, req ReassignRequest, err error) error {
	wrapped := WrapError(CodeReassignmentFailed, err, "role reassignment failed")
	e.error(ctx, actor, req, wrapped)
	return wrapped
}

func (e *Engine) requestLogger(ctx context.Context, actor *auth.Context, req ReassignRequest) *observability.Logger {
	actorName := ""
	if actor != nil {
		actorName = actor.Username
	}
	return e.logger.WithFields(map[string]interface{}{
		"actor":        actorName,
		"request_id":   contextkeys.RequestID(ctx),
		"user_id":      req.UserID,
		"from_role_id": req.FromRoleID,
		"to_role_id":   req.ToRoleID,
	})
}
