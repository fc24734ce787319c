package scim

import (
	"strings"

	"github.com/google/uuid"
)

// SelectEmail picks the address to use for a resource: the first email
// marked both work and primary, else the first primary one, else the first
// one in the list, else the empty string.
func SelectEmail(user RawUser) (result string) {
	var emails = toArray(user["emails"])
	if len(emails) == 0 {
		return
	}
	// preferred entries only count when they carry a value; the final
	// fallback takes the first entry as-is, empty or not
	var pick = func(match func(map[string]any) bool) (value string) {
		for _, e := range emails {
			var eo = toObject(e)
			if eo == nil || !match(eo) {
				continue
			}
			value, _ = toString(eo["value"])
			if len(value) > 0 {
				return
			}
		}
		return
	}
	if value := pick(func(eo map[string]any) bool {
		var t, _ = toString(eo["type"])
		var primary, _ = toBoolean(eo["primary"])
		return t == "work" && primary
	}); len(value) > 0 {
		return value
	}
	if value := pick(func(eo map[string]any) bool {
		var primary, _ = toBoolean(eo["primary"])
		return primary
	}); len(value) > 0 {
		return value
	}
	if eo := toObject(emails[0]); eo != nil {
		result, _ = toString(eo["value"])
	}
	return
}

// EnsureID returns the trimmed source identifier, or a freshly generated
// one when the source value is blank.
func EnsureID(id string) string {
	if trimmed := strings.TrimSpace(id); len(trimmed) > 0 {
		return trimmed
	}
	return uuid.NewString()
}

// FlattenUser maps one raw resource into the UsersVH read shape. No
// filtering happens here: identifiers and emails are carried as-is.
func FlattenUser(user RawUser) (row UserRow) {
	row.ID, _ = toString(user["id"])
	row.UserName, _ = toString(user["userName"])
	row.DisplayName, _ = toString(user["displayName"])
	if name := toObject(user["name"]); name != nil {
		row.FirstName, _ = toString(name["givenName"])
		row.LastName, _ = toString(name["familyName"])
	}
	row.Email = SelectEmail(user)
	return
}

// NormalizeUser maps a flattened row into the persistence shape. Rows
// without an email address are not persisted; ok reports whether the record
// is usable.
func NormalizeUser(row UserRow) (record UserRecord, ok bool) {
	var email = strings.ToLower(strings.TrimSpace(row.Email))
	if len(email) == 0 {
		return
	}
	var displayName = row.DisplayName
	if len(displayName) == 0 {
		displayName = strings.TrimSpace(row.FirstName + " " + row.LastName)
	}
	record = UserRecord{
		ID:          EnsureID(row.ID),
		FamilyName:  row.LastName,
		GivenName:   row.FirstName,
		DisplayName: displayName,
		Email:       email,
		UserName:    row.UserName,
	}
	ok = true
	return
}

func isInactive(user RawUser) bool {
	active, ok := user["active"].(bool)
	return ok && !active
}
