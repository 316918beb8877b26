// Package access holds the conversation authorization rules as pure
// decision tables, evaluated without touching persistence.
package access

import "github.com/stafflink/stafflink-chat/internal/store"

// Channel slugs. The channel set is fixed in code; unrecognized slugs
// are denied outright.
const (
	SlugAnnouncements = "announcements"
	SlugHRTeam        = "hr-team"
)

type roleSet map[store.Role]bool

var allRoles = roleSet{
	store.RoleAdmin:    true,
	store.RoleHR:       true,
	store.RoleManager:  true,
	store.RoleEmployee: true,
}

var adminHR = roleSet{
	store.RoleAdmin: true,
	store.RoleHR:    true,
}

// channelRule is one row of the channel access matrix.
type channelRule struct {
	name string
	view roleSet
	send roleSet
}

var channelRules = map[string]channelRule{
	SlugAnnouncements: {name: "Announcements", view: allRoles, send: adminHR},
	SlugHRTeam:        {name: "HR Team", view: adminHR, send: adminHR},
}

// Channels returns the fixed channel set to provision at startup.
func Channels() []store.ChannelSeed {
	return []store.ChannelSeed{
		{Slug: SlugAnnouncements, Name: channelRules[SlugAnnouncements].name},
		{Slug: SlugHRTeam, Name: channelRules[SlugHRTeam].name},
	}
}

// CanViewChannel reports whether a role may view the channel with the
// given slug. Unknown slugs fail closed.
func CanViewChannel(role store.Role, slug string) bool {
	rule, ok := channelRules[slug]
	return ok && rule.view[role]
}

// CanSendChannel reports whether a role may post into the channel with
// the given slug. Sending implies viewing.
func CanSendChannel(role store.Role, slug string) bool {
	rule, ok := channelRules[slug]
	return ok && rule.view[role] && rule.send[role]
}

// ChannelsVisibleTo returns the channel slugs a role may view, in the
// provisioning order.
func ChannelsVisibleTo(role store.Role) []string {
	var slugs []string
	for _, seed := range Channels() {
		if CanViewChannel(role, seed.Slug) {
			slugs = append(slugs, seed.Slug)
		}
	}
	return slugs
}

// CanMessage is the direct-conversation role-pair rule, evaluated from
// the acting user's side: employees may only message HR and managers,
// every other role may message anyone. The same rule gates both sending
// into an existing DM and creating one, so no DM can exist that its
// creator could not post into.
func CanMessage(actor, other store.Role) bool {
	if !allRoles[actor] || !allRoles[other] {
		return false
	}
	if actor == store.RoleEmployee {
		return other == store.RoleHR || other == store.RoleManager
	}
	return true
}
