package routes

// Route names of the platform's client.
const (
	Home               = "Home"
	Map                = "Map"
	AnnouncementDetail = "AnnouncementDetail"
	Dashboard          = "Dashboard"
	CreateAnnouncement = "CreateAnnouncement"
	EditAnnouncement   = "EditAnnouncement"
	Profile            = "Profile"
	Bookings           = "Bookings"
	Blog               = "Blog"
	Contact            = "Contact"
	Admin              = "Admin"
	Notifications      = "Notifications"
)

// Declared returns the platform's route declarations in order.
func Declared() []Route {
	return []Route{
		{Name: Home, Path: "/"},
		{Name: Map, Path: "/map"},
		{Name: AnnouncementDetail, Path: "/announcement/:id"},
		{Name: Dashboard, Path: "/dashboard", Requires: RequiresAuth | RequiresOrganization},
		{Name: CreateAnnouncement, Path: "/announcement/create", Requires: RequiresAuth | RequiresOrganization},
		{Name: EditAnnouncement, Path: "/announcement/edit/:id", Requires: RequiresAuth | RequiresOrganization},
		// Profiles are public, with or without an id.
		{Name: Profile, Path: "/profile/:id?"},
		{Name: Bookings, Path: "/bookings", Requires: RequiresAuth | RequiresVolunteer},
		{Name: Blog, Path: "/blog"},
		{Name: Contact, Path: "/contact"},
		{Name: Admin, Path: "/admin", Requires: RequiresAuth | RequiresAdmin},
		{Name: Notifications, Path: "/notifications", Requires: RequiresAuth},
	}
}

var defaultTable = MustNewTable(Home, Declared()...)

// Default returns the platform's route table with Home as landing route.
func Default() *Table {
	return defaultTable
}
