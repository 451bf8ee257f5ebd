package application

import "errors"

// ErrInvalidPlan is returned synchronously by Configure/New when a refresh
// plan cannot be repaired by clamping.
var ErrInvalidPlan = errors.New("invalid refresh plan")
