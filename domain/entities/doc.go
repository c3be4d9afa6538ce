// Package entities provides the host-native domain values that plugin results
// are converted into: pages of series and episodes, playable videos, filters,
// media resources and plugin metadata.
//
// These types carry no handles and no guest memory references; everything in
// here is owned by the host once marshaling has finished.
package entities
