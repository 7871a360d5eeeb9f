package session

import (
	"context"
	"sync"
	"time"

	"github.com/appmaster-cloud/gateway/internal/events"
	"github.com/appmaster-cloud/gateway/internal/logging"
	"github.com/appmaster-cloud/gateway/internal/metrics"
)

// RoleRecord is the role assignment looked up for a principal.
type RoleRecord struct {
	Role           string
	UserType       string
	OrganisationID string
}

// Profile is the optional profile enrichment for a principal.
type Profile struct {
	DisplayName string
	AccountType string
}

// Directory answers the lookups the resolver needs. The production
// implementation reads Supabase tables; tests substitute fakes.
type Directory interface {
	// RoleAssignment returns the users-table record for the principal. A
	// nil record with nil error means no row exists.
	RoleAssignment(ctx context.Context, userID string) (*RoleRecord, error)
	// ProfileAttributes returns the profiles-table record for the
	// principal. A nil record with nil error means no row exists.
	ProfileAttributes(ctx context.Context, userID string) (*Profile, error)
	// PlatformAdminRole returns the active appmaster_admins role for the
	// principal, empty when none exists.
	PlatformAdminRole(ctx context.Context, userID string) (string, error)
}

// TenantPrimer is notified when a committed session belongs to an
// organisation, so the tenant context can start loading.
type TenantPrimer interface {
	Prime(ctx context.Context, organisationID string)
	Invalidate()
}

// Resolver bridges auth events to the session store. Each event produces
// exactly one store commit; lookups for role, profile and platform-admin
// status run in parallel and merge into a single Session value.
type Resolver struct {
	store   *Store
	dir     Directory
	tenants TenantPrimer
	logger  *logging.Logger

	// Timeout bounds one resolution. Zero means 10s.
	Timeout time.Duration
}

// NewResolver creates a resolver. tenants may be nil.
func NewResolver(store *Store, dir Directory, tenants TenantPrimer, logger *logging.Logger) *Resolver {
	return &Resolver{store: store, dir: dir, tenants: tenants, logger: logger}
}

// Run consumes auth events until ctx is done or the hub closes. The
// subscription is released on return.
func (r *Resolver) Run(ctx context.Context, hub *events.Hub) {
	ch, cancel := hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			r.Handle(ctx, event)
		}
	}
}

// Handle processes one auth event synchronously.
func (r *Resolver) Handle(ctx context.Context, event events.AuthEvent) {
	switch event.Kind {
	case events.SignedIn, events.TokenRefreshed:
		r.resolve(ctx, event.UserID, event.Email)
	case events.SignedOut:
		r.store.Clear()
		if r.tenants != nil {
			r.tenants.Invalidate()
		}
	}
}

func (r *Resolver) resolve(ctx context.Context, userID, email string) {
	if userID == "" {
		return
	}

	tag := r.store.BeginResolution(userID, email)

	timeout := r.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		wg        sync.WaitGroup
		record    *RoleRecord
		recordErr error
		profile   *Profile
		profErr   error
		adminRole string
		adminErr  error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		record, recordErr = r.dir.RoleAssignment(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		profile, profErr = r.dir.ProfileAttributes(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		adminRole, adminErr = r.dir.PlatformAdminRole(ctx, userID)
	}()
	wg.Wait()

	log := r.logger.WithContext(logging.WithUserID(ctx, userID))

	sess := Session{UserID: userID, Email: email}

	// Enrichment failures degrade, they never block sign-in.
	switch {
	case recordErr != nil:
		log.WithError(recordErr).Warn("role lookup failed, defaulting to least-privileged role")
		sess.Role = RoleMember
	case record == nil:
		sess.Role = RoleMember
	default:
		sess.Role = ParseOrgRole(record.Role)
		if sess.Role == RoleNone {
			sess.Role = RoleMember
		}
		sess.UserType = ParseUserType(record.UserType)
		sess.OrganisationID = record.OrganisationID
	}

	switch {
	case profErr != nil:
		log.WithError(profErr).Warn("profile lookup failed, using email local-part")
		sess.DisplayName = EmailLocalPart(email)
	case profile == nil:
		sess.DisplayName = EmailLocalPart(email)
	default:
		sess.DisplayName = profile.DisplayName
		if sess.DisplayName == "" {
			sess.DisplayName = EmailLocalPart(email)
		}
		sess.AccountType = ParseAccountType(profile.AccountType)
	}

	if adminErr != nil {
		log.WithError(adminErr).Warn("platform admin lookup failed, treating as non-admin")
	} else {
		sess.PlatformAdminRole = adminRole
	}

	if !r.store.Commit(tag, sess) {
		// A newer auth event superseded this resolution; the result is
		// stale and must not be applied.
		metrics.RecordSessionResolution("stale")
		log.Debug("discarded stale session resolution")
		return
	}
	metrics.RecordSessionResolution("committed")

	if r.tenants != nil && sess.IsOrganization() && sess.OrganisationID != "" {
		r.tenants.Prime(ctx, sess.OrganisationID)
	}
}
