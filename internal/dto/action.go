package dto

import "github.com/NovaByteCorp/deliverypro/internal/lifecycle"

// actionPaths maps lifecycle actions to the last segment of
// POST /orders/:id/<segment>.
var actionPaths = map[lifecycle.Action]string{
	lifecycle.ActionConfirm:          "confirm",
	lifecycle.ActionStartPreparation: "prepare",
	lifecycle.ActionMarkReady:        "ready",
	lifecycle.ActionAccept:           "accept",
	lifecycle.ActionConfirmPickup:    "confirm-pickup",
	lifecycle.ActionReject:           "reject",
	lifecycle.ActionStartDelivery:    "start-delivery",
	lifecycle.ActionDeliver:          "deliver",
	lifecycle.ActionCancel:           "cancel",
}

// ActionPath returns the route segment of action.
func ActionPath(action lifecycle.Action) (string, bool) {
	p, ok := actionPaths[action]
	return p, ok
}

// ActionRoutes lists every action with its route segment.
func ActionRoutes() map[lifecycle.Action]string {
	out := make(map[lifecycle.Action]string, len(actionPaths))
	for k, v := range actionPaths {
		out[k] = v
	}
	return out
}
