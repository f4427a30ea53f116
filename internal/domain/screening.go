package domain

// ScreeningResult is the advisory answer from a sanctions lookup.
type ScreeningResult struct {
	IsSanctioned bool
	Name         string
}
