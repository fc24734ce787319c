package scim

import "context"

// RawUser is a SCIM user resource exactly as decoded from the provider
// response. Unknown fields are carried along and ignored.
type RawUser = map[string]any

// UserRow is the flattened read shape served by UsersVH. Values are taken
// from the resource as-is; Email may be empty.
type UserRow struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DisplayName string `json:"displayName"`
	UserName    string `json:"userName"`
}

// UserRecord is the persistence shape written to the Users table.
type UserRecord struct {
	ID          string `json:"id"`
	FamilyName  string `json:"familyName"`
	GivenName   string `json:"givenName"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	UserName    string `json:"userName"`
}

// RoleAggregate is one distinct role value with its display label and the
// number of active users holding it.
type RoleAggregate struct {
	Value     string `json:"roleValue"`
	Display   string `json:"roleDisplay"`
	UserCount int    `json:"usersCount"`
}

// UserRole is one (user, role) association row.
type UserRole struct {
	UserID    string `json:"userId"`
	RoleValue string `json:"roleValue"`
}

// UserRoleRow is the joined shape served by UserRolesVH.
type UserRoleRow struct {
	UserID      string `json:"userId"`
	RoleValue   string `json:"roleValue"`
	UserName    string `json:"userName"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	RoleDisplay string `json:"roleDisplay"`
}

// IUserSource reads user resources from the identity provider.
type IUserSource interface {
	FetchUsers(ctx context.Context) ([]UserRow, error)
	FetchUsersRaw(ctx context.Context) ([]RawUser, error)
}
