package repository

// Match result from player one's perspective.
const (
	resultDraw = iota
	resultPlayerOne
	resultPlayerTwo
)

// decideResult compares final scores; strictly greater wins, equal is a draw.
func decideResult(scoreOne, scoreTwo int) int {
	switch {
	case scoreOne > scoreTwo:
		return resultPlayerOne
	case scoreTwo > scoreOne:
		return resultPlayerTwo
	default:
		return resultDraw
	}
}

// applyResult folds one match result into both players' cumulative records.
// Winner takes 2 points; a draw shares 1 point each.
func applyResult(one, two *History, result int) {
	one.MatchesPlayed++
	two.MatchesPlayed++

	switch result {
	case resultPlayerOne:
		one.MatchesWon++
		one.Points += 2
		two.MatchesLost++
	case resultPlayerTwo:
		two.MatchesWon++
		two.Points += 2
		one.MatchesLost++
	default:
		one.MatchesDrawn++
		two.MatchesDrawn++
		one.Points++
		two.Points++
	}
}
