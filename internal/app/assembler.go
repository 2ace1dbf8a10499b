package app

import "bank_reviews/internal/domain"

type DatasetAssembler struct {
	catalog *domain.Catalog
}

func NewDatasetAssembler(c *domain.Catalog) *DatasetAssembler {
	return &DatasetAssembler{catalog: c}
}

// Assemble joins reviews with their theme and sentiment results on review_id.
// Every review needs exactly one of each; any gap, duplicate or orphan result
// is a JoinError.
func (a *DatasetAssembler) Assemble(rs []domain.Review, themes []domain.ThemeResult, sents []domain.SentimentResult) ([]domain.LabeledReview, error) {
	known := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		known[r.ReviewID] = struct{}{}
	}

	byTheme := make(map[string]domain.Themes, len(themes))
	for _, t := range themes {
		if _, ok := known[t.ReviewID]; !ok {
			return nil, &domain.JoinError{ReviewID: t.ReviewID, Kind: domain.JoinOrphanResult}
		}
		if _, dup := byTheme[t.ReviewID]; dup {
			return nil, &domain.JoinError{ReviewID: t.ReviewID, Kind: domain.JoinDuplicateResult}
		}
		byTheme[t.ReviewID] = t.Themes
	}

	bySent := make(map[string]domain.Sentiment, len(sents))
	for _, s := range sents {
		if _, ok := known[s.ReviewID]; !ok {
			return nil, &domain.JoinError{ReviewID: s.ReviewID, Kind: domain.JoinOrphanResult}
		}
		if _, dup := bySent[s.ReviewID]; dup {
			return nil, &domain.JoinError{ReviewID: s.ReviewID, Kind: domain.JoinDuplicateResult}
		}
		bySent[s.ReviewID] = s.Sentiment
	}

	out := make([]domain.LabeledReview, 0, len(rs))
	for _, r := range rs {
		th, ok := byTheme[r.ReviewID]
		if !ok {
			return nil, &domain.JoinError{ReviewID: r.ReviewID, Kind: domain.JoinMissingThemes}
		}
		s, ok := bySent[r.ReviewID]
		if !ok {
			return nil, &domain.JoinError{ReviewID: r.ReviewID, Kind: domain.JoinMissingSentiment}
		}
		bank, ok := a.catalog.ByID(r.BankID)
		if !ok {
			return nil, &domain.JoinError{ReviewID: r.ReviewID, Kind: domain.JoinUnknownBank}
		}
		if len(th) == 0 {
			th = domain.Themes{domain.OtherTheme}
		}
		out = append(out, domain.LabeledReview{
			ReviewID:        r.ReviewID,
			BankID:          bank.ID,
			BankName:        bank.Name,
			AppName:         bank.AppName,
			Text:            r.Text,
			Rating:          r.Rating,
			Date:            r.Date,
			SentimentLabel:  s.Label,
			SentimentScore:  s.Score,
			ScoringDegraded: s.Degraded,
			Themes:          th,
			Source:          r.Source,
		})
	}
	return out, nil
}
