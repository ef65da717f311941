package guard

// Phase is a state of one navigation pass.
type Phase uint8

const (
	PhasePending Phase = iota
	PhaseHydrating
	PhaseEvaluating
	PhaseAllowed
	PhaseDenied
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseHydrating:
		return "hydrating"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseAllowed:
		return "allowed"
	case PhaseDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Reason explains a denial.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonAuthRequired
	ReasonOrganizationOnly
	ReasonVolunteerOnly
	ReasonAdminOnly
	ReasonNotFound
)

var reasonText = [...]struct {
	name    string
	message string
}{
	ReasonNone:             {"none", ""},
	ReasonAuthRequired:     {"auth_required", "Please log in to access this page"},
	ReasonOrganizationOnly: {"organization_only", "This page is only available for organizations"},
	ReasonVolunteerOnly:    {"volunteer_only", "This page is only available for volunteers"},
	ReasonAdminOnly:        {"admin_only", "This page is only available for administrators"},
	ReasonNotFound:         {"not_found", ""},
}

func (r Reason) String() string {
	if int(r) < len(reasonText) {
		return reasonText[r].name
	}
	return "unknown"
}

// Message is the notification shown for the denial, or "" when the
// denial is silent.
func (r Reason) Message() string {
	if int(r) < len(reasonText) {
		return reasonText[r].message
	}
	return ""
}
