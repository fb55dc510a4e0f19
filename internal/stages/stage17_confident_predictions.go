package stages

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dpam-project/dpam/internal/model"
)

// QualityLabel is stage 17's per-row confidence label.
type QualityLabel string

const (
	QualityGood QualityLabel = "good"
	QualityOK   QualityLabel = "ok"
	QualityBad  QualityLabel = "bad"
)

// ConfidentPrediction is one stage-17 output row.
type ConfidentPrediction struct {
	DomainID       int
	UID            int64
	TGroup         string
	Prob           float64
	SimilarTGroups []string
	SimilarHGroups []string
	Quality        QualityLabel
}

// ConfidentPredictions implements stage 17: group by domain, keep rows
// with p>=0.60, and for each kept row compute the set of T-groups
// whose best probability on that domain is within 0.05 of the
// domain's overall best, and the H-groups implied by that set (spec.md
// stage 17).
func ConfidentPredictions(preds []DomassPrediction) []ConfidentPrediction {
	byDomain := make(map[int][]DomassPrediction)
	for _, p := range preds {
		byDomain[p.Row.DomainID] = append(byDomain[p.Row.DomainID], p)
	}

	var out []ConfidentPrediction
	for domainID, group := range byDomain {
		bestPerTGroup := make(map[string]float64)
		pStar := 0.0
		for _, p := range group {
			if p.Row.TGroup == "" {
				continue
			}
			if p.Prob > bestPerTGroup[p.Row.TGroup] {
				bestPerTGroup[p.Row.TGroup] = p.Prob
			}
			if p.Prob > pStar {
				pStar = p.Prob
			}
		}

		var similarTGroups []string
		for t, best := range bestPerTGroup {
			if best >= pStar-0.05 {
				similarTGroups = append(similarTGroups, t)
			}
		}
		sort.Strings(similarTGroups)

		hgroupSet := make(map[string]bool)
		for _, t := range similarTGroups {
			hgroupSet[firstTwoLevels(t)] = true
		}
		var similarHGroups []string
		for h := range hgroupSet {
			similarHGroups = append(similarHGroups, h)
		}
		sort.Strings(similarHGroups)

		quality := QualityBad
		switch {
		case len(similarTGroups) == 1:
			quality = QualityGood
		case len(similarHGroups) == 1:
			quality = QualityOK
		}

		for _, p := range group {
			if p.Prob < 0.60 {
				continue
			}
			out = append(out, ConfidentPrediction{
				DomainID:       domainID,
				UID:            p.Row.UID,
				TGroup:         p.Row.TGroup,
				Prob:           p.Prob,
				SimilarTGroups: similarTGroups,
				SimilarHGroups: similarHGroups,
				Quality:        quality,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DomainID != out[j].DomainID {
			return out[i].DomainID < out[j].DomainID
		}
		return out[i].Prob > out[j].Prob
	})
	return out
}

func firstTwoLevels(tgroup string) string {
	parts := strings.Split(tgroup, ".")
	if len(parts) <= 2 {
		return tgroup
	}
	return strings.Join(parts[:2], ".")
}

// WriteConfidentPredictions emits stage 17's primary output.
func WriteConfidentPredictions(ctx *Context, preds []ConfidentPrediction) error {
	if err := ctx.Resolver.EnsureStageDir(model.CONFIDENT_PREDICTIONS); err != nil {
		return fmt.Errorf("stage17: %w", err)
	}
	path := ctx.Resolver.StagePath(model.CONFIDENT_PREDICTIONS, ctx.Prefix+".confident_predictions")
	return writeLines(path, func(w io.Writer) error {
		for _, p := range preds {
			_, err := fmt.Fprintf(w, "D%d\t%d\t%s\t%g\t%s\t%s\t%s\n",
				p.DomainID, p.UID, p.TGroup, p.Prob,
				strings.Join(p.SimilarTGroups, ","), strings.Join(p.SimilarHGroups, ","), p.Quality)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
