package appointment

import "turnero/models"

// transitions lists the allowed target statuses per source status.
// completed, cancelled and no_show are terminal.
var transitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.StatusPending:    {models.StatusConfirmed, models.StatusCancelled, models.StatusNoShow},
	models.StatusConfirmed:  {models.StatusInProgress, models.StatusCancelled, models.StatusNoShow},
	models.StatusInProgress: {models.StatusCompleted, models.StatusCancelled},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to models.AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
