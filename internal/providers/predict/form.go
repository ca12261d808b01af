package predict

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"server/internal/domain"
)

// FormPredictor derives a conservative prediction from recent form alone.
// It is deterministic and never fails, which makes it the fallback whenever
// the generation provider returns something unusable.
type FormPredictor struct{}

func NewFormPredictor() *FormPredictor {
	return &FormPredictor{}
}

func (f *FormPredictor) Predict(ctx context.Context, mctx domain.MatchContext) (*domain.Prediction, error) {
	homeForm := lastN(mctx.Home.RecentForm, 5)
	awayForm := lastN(mctx.Away.RecentForm, 5)

	homeScore := float64(count(homeForm, domain.FormWin)) + 0.5*float64(count(homeForm, domain.FormDraw))
	awayScore := float64(count(awayForm, domain.FormWin)) + 0.5*float64(count(awayForm, domain.FormDraw))
	drawScore := float64(count(homeForm, domain.FormDraw) + count(awayForm, domain.FormDraw))

	total := homeScore + awayScore + drawScore
	if total == 0 {
		total = 1
	}
	homePct := int(math.Round(homeScore / total * 100))
	awayPct := int(math.Round(awayScore / total * 100))
	drawPct := 100 - homePct - awayPct

	btts := 0
	if mctx.Home.GoalsScored > 0 {
		btts += 50
	}
	if mctx.Away.GoalsScored > 0 {
		btts += 50
	}

	caser := cases.Title(language.English)
	return &domain.Prediction{
		Score:      "1-1",
		WinChances: domain.WinChances{Home: homePct, Draw: drawPct, Away: awayPct},
		BTTSPct:    btts,
		Reasoning:  fmt.Sprintf("%s vs %s: prediction based on recent form.", caser.String(mctx.Home.Name), caser.String(mctx.Away.Name)),
		Provider:   formProviderName,
	}, nil
}

func lastN(form []domain.FormResult, n int) []domain.FormResult {
	if len(form) <= n {
		return form
	}
	return form[len(form)-n:]
}

func count(form []domain.FormResult, want domain.FormResult) int {
	total := 0
	for _, r := range form {
		if r == want {
			total++
		}
	}
	return total
}

var _ Predictor = (*FormPredictor)(nil)
