package scim

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// displayOrder compares human-readable labels the way a UI sorts them.
var displayOrder = collate.New(language.Und)

// AggregateRoles counts role membership across the active users of a
// snapshot. One aggregate is produced per distinct role value; the display
// label seen first wins. Results are ordered by display label.
func AggregateRoles(resources []RawUser) (result []RoleAggregate) {
	var index = make(map[string]int)
	for _, user := range resources {
		if isInactive(user) {
			continue
		}
		for _, role := range toArray(user["roles"]) {
			var ro = toObject(role)
			if ro == nil {
				continue
			}
			var value = strings.TrimSpace(stringify(ro["value"]))
			if len(value) == 0 {
				continue
			}
			var pos, seen = index[value]
			if !seen {
				var display = strings.TrimSpace(stringify(ro["display"]))
				if len(display) == 0 {
					display = value
				}
				index[value] = len(result)
				result = append(result, RoleAggregate{Value: value, Display: display})
				pos = len(result) - 1
			}
			result[pos].UserCount += 1
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return displayOrder.CompareString(result[i].Display, result[j].Display) < 0
	})
	return
}

// BuildUserRoles produces the association write set: one row per (user,
// role value) pair held by an active user. Blank source identifiers are
// replaced with generated ones so every row references a user.
func BuildUserRoles(resources []RawUser) (result []UserRole) {
	for _, user := range resources {
		if isInactive(user) {
			continue
		}
		var id, _ = toString(user["id"])
		var userId = EnsureID(id)
		for _, role := range toArray(user["roles"]) {
			var ro = toObject(role)
			if ro == nil {
				continue
			}
			var value = strings.TrimSpace(stringify(ro["value"]))
			if len(value) == 0 {
				continue
			}
			result = append(result, UserRole{UserID: userId, RoleValue: value})
		}
	}
	return
}

// BuildUserRoleRows produces the UserRolesVH join: per active user and role
// a row carrying the user's name and email next to the role. Rows are
// ordered by display name, then role value.
func BuildUserRoleRows(resources []RawUser) (result []UserRoleRow) {
	for _, user := range resources {
		if isInactive(user) {
			continue
		}
		var userId, _ = toString(user["id"])
		var userName, _ = toString(user["userName"])
		var displayName, _ = toString(user["displayName"])
		if len(displayName) == 0 {
			if name := toObject(user["name"]); name != nil {
				displayName, _ = toString(name["formatted"])
			}
		}
		var email = SelectEmail(user)
		for _, role := range toArray(user["roles"]) {
			var ro = toObject(role)
			if ro == nil {
				continue
			}
			var value = strings.TrimSpace(stringify(ro["value"]))
			if len(value) == 0 {
				continue
			}
			var roleDisplay = strings.TrimSpace(stringify(ro["display"]))
			if len(roleDisplay) == 0 {
				roleDisplay = value
			}
			result = append(result, UserRoleRow{
				UserID:      userId,
				RoleValue:   value,
				UserName:    userName,
				DisplayName: displayName,
				Email:       email,
				RoleDisplay: roleDisplay,
			})
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if c := displayOrder.CompareString(result[i].DisplayName, result[j].DisplayName); c != 0 {
			return c < 0
		}
		return displayOrder.CompareString(result[i].RoleValue, result[j].RoleValue) < 0
	})
	return
}
