package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dspsync/userlist/scim"
)

// Storage is the slice of the store the orchestrator writes through.
type Storage interface {
	UpsertUsers(ctx context.Context, records []scim.UserRecord) (int, error)
	UpsertRoles(ctx context.Context, roles []scim.RoleAggregate) (int, error)
	ReplaceUserRoles(ctx context.Context, roles []scim.RoleAggregate, associations []scim.UserRole) (int, error)
}

// Syncer drives the idempotent sync actions. Every action recomputes its
// write set from a fresh SCIM snapshot. Each action is serialized by its
// own mutex so overlapping invocations cannot interleave their writes;
// distinct actions still run concurrently.
type Syncer struct {
	source scim.IUserSource
	store  Storage
	log    *logrus.Entry

	muUsers     sync.Mutex
	muRoles     sync.Mutex
	muUserRoles sync.Mutex
}

func NewSyncer(source scim.IUserSource, store Storage) *Syncer {
	return &Syncer{
		source: source,
		store:  store,
		log:    logrus.WithField("component", "sync"),
	}
}

// SyncUsers upserts the Users table from the latest snapshot. Rows without
// an email address are dropped; users absent from the snapshot are not
// pruned. Returns the number of records written.
func (s *Syncer) SyncUsers(ctx context.Context) (int, error) {
	s.muUsers.Lock()
	defer s.muUsers.Unlock()

	rows, err := s.source.FetchUsers(ctx)
	if err != nil {
		return 0, err
	}
	records := make([]scim.UserRecord, 0, len(rows))
	for _, row := range rows {
		if record, ok := scim.NormalizeUser(row); ok {
			records = append(records, record)
		}
	}
	if len(records) == 0 {
		return 0, nil
	}
	count, err := s.store.UpsertUsers(ctx, records)
	if err != nil {
		return 0, err
	}
	s.log.WithField("count", count).Info("users synced")
	return count, nil
}

// SyncRoles upserts the Roles table from the aggregated snapshot.
func (s *Syncer) SyncRoles(ctx context.Context) (int, error) {
	s.muRoles.Lock()
	defer s.muRoles.Unlock()

	resources, err := s.source.FetchUsersRaw(ctx)
	if err != nil {
		return 0, err
	}
	roles := scim.AggregateRoles(resources)
	if len(roles) == 0 {
		return 0, nil
	}
	count, err := s.store.UpsertRoles(ctx, roles)
	if err != nil {
		return 0, err
	}
	s.log.WithField("count", count).Info("roles synced")
	return count, nil
}

// SyncUserRoles rebuilds the association table from the latest snapshot.
// Role aggregates are refreshed in the same transaction, the table is
// emptied, and the new rows inserted. A snapshot without any qualifying
// association leaves the table empty.
func (s *Syncer) SyncUserRoles(ctx context.Context) (int, error) {
	s.muUserRoles.Lock()
	defer s.muUserRoles.Unlock()

	resources, err := s.source.FetchUsersRaw(ctx)
	if err != nil {
		return 0, err
	}
	roles := scim.AggregateRoles(resources)
	associations := scim.BuildUserRoles(resources)
	count, err := s.store.ReplaceUserRoles(ctx, roles, associations)
	if err != nil {
		return 0, err
	}
	s.log.WithField("count", count).Info("user roles synced")
	return count, nil
}
