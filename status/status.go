package status

import "strings"

// Status is the canonical workflow status of a credit application. The same
// closed set is used for the per-authority mirrors (advisor_status,
// company_status, global_status).
type Status string

const (
	New          Status = "new"
	InReview     Status = "in_review"
	Approved     Status = "approved"
	PorDispersar Status = "por_dispersar"
	Completed    Status = "completed"
	Expired      Status = "expired"
	Rejected     Status = "rejected"
	Cancelled    Status = "cancelled"

	// None marks an empty previous_* snapshot slot.
	None Status = ""
)

// Labels maps statuses to the user-facing Spanish display names.
var Labels = map[Status]string{
	New:          "Nuevo",
	InReview:     "En Revisión",
	Approved:     "Aprobado",
	PorDispersar: "Por Dispersar",
	Completed:    "Completado",
	Expired:      "Expirado",
	Rejected:     "Rechazado",
	Cancelled:    "Cancelado",
}

// legacy intake labels that older rows and clients still carry.
var aliases = map[string]Status{
	"pending":       New,
	"solicitud":     New,
	"Solicitud":     New,
	"Pendiente":     New,
	"En Revisión":   InReview,
	"Aprobado":      Approved,
	"Rechazado":     Rejected,
	"Por Dispersar": PorDispersar,
	"Completado":    Completed,
	"Cancelado":     Cancelled,
	"Expirado":      Expired,
}

// Normalize maps a raw status string from the store or a client into the
// closed enum. Legacy aliases collapse onto their canonical value. The second
// return is false for values outside the known set; callers must treat those
// as New for display only and never persist them.
func Normalize(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s.Valid() {
		return s, true
	}
	if mapped, ok := aliases[strings.TrimSpace(raw)]; ok {
		return mapped, true
	}
	if mapped, ok := aliases[string(s)]; ok {
		return mapped, true
	}
	return New, false
}

// Valid reports whether s is one of the canonical workflow statuses.
func (s Status) Valid() bool {
	switch s {
	case New, InReview, Approved, PorDispersar, Completed, Expired, Rejected, Cancelled:
		return true
	}
	return false
}

// Shared reports whether the status places the application in one of the
// lanes every viewer role sees identically. Once a record reaches a shared
// lane the company admin's virtual sub-workflow no longer applies.
func (s Status) Shared() bool {
	switch s {
	case PorDispersar, Completed, Expired, Cancelled, Rejected:
		return true
	}
	return false
}

// Terminal reports whether no further workflow movement is possible at all.
// Rejected is not terminal (restore) and por_dispersar is not terminal
// (disperse).
func (s Status) Terminal() bool {
	switch s {
	case Completed, Expired, Cancelled:
		return true
	}
	return false
}

// Label returns the Spanish display name, falling back to the raw value.
func (s Status) Label() string {
	if l, ok := Labels[s]; ok {
		return l
	}
	return string(s)
}
