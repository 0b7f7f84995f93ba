// Command gen-fse generates a synthetic factorial survey (deck design plus
// wide respondent file) with known coefficients for end-to-end testing. The
// generated columns match the default analysis config.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	outSurvey   = flag.String("survey", "survey.csv", "output path for the wide survey file")
	outDeck     = flag.String("deck", "deck.csv", "output path for the deck design file")
	respondents = flag.Int("n", 200, "number of respondents")
	decks       = flag.Int("decks", 10, "number of decks")
	vignettes   = flag.Int("k", 8, "vignettes per deck")
	seed        = flag.Uint64("seed", 4523745, "random seed")

	// true data-generating coefficients on the logit scale
	bIcept = flag.Float64("b0", -2.0, "true intercept")
	bWage  = flag.Float64("b-wage", 0.12, "true wage coefficient")
	bHours = flag.Float64("b-hours", -0.02, "true weekly-hours coefficient")
	bPerm  = flag.Float64("b-perm", 0.6, "true permanent-contract coefficient")
	bMed   = flag.Float64("b-commute-medium", -0.15, "true medium-commute coefficient")
	bLong  = flag.Float64("b-commute-long", -0.35, "true long-commute coefficient")
)

var commuteLevels = []string{"short", "medium", "long"}

// vignette is one design cell: the job offer a respondent rates.
type vignette struct {
	wage    float64
	hours   float64
	perm    bool
	commute string
}

func main() {
	flag.Parse()

	src := rand.NewSource(*seed)
	rng := rand.New(src)
	wageDist := distuv.Uniform{Min: 10, Max: 25, Src: src}
	hoursDist := distuv.Uniform{Min: 20, Max: 40, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 0.05, Src: src}
	coin := distuv.Bernoulli{P: 0.5, Src: src}

	design := make([][]vignette, *decks)
	for d := range design {
		cells := make([]vignette, *vignettes)
		for j := range cells {
			cells[j] = vignette{
				wage:    math.Round(wageDist.Rand()),
				hours:   math.Round(hoursDist.Rand()),
				perm:    coin.Rand() == 1,
				commute: commuteLevels[rng.Intn(len(commuteLevels))],
			}
		}
		design[d] = cells
	}

	if err := writeDeck(design); err != nil {
		log.Fatalf("failed to write deck file: %v", err)
	}
	if err := writeSurvey(design, noise); err != nil {
		log.Fatalf("failed to write survey file: %v", err)
	}

	log.Printf("wrote %s (%d respondents) and %s (%d decks x %d vignettes)",
		*outSurvey, *respondents, *outDeck, *decks, *vignettes)
	log.Printf("true coefficients: icept=%.2f wage=%.3f hours=%.3f contract_permanent=%.2f commute_medium=%.2f commute_long=%.2f",
		*bIcept, *bWage, *bHours, *bPerm, *bMed, *bLong)
}

func deckName(d int) string {
	return fmt.Sprintf("d%02d", d+1)
}

func writeDeck(design [][]vignette) error {
	f, err := os.Create(*outDeck)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"deck", "position", "wage", "hours", "contract", "commute"}); err != nil {
		return err
	}
	for d, cells := range design {
		for j, c := range cells {
			contract := "temporary"
			if c.perm {
				contract = "permanent"
			}
			row := []string{
				deckName(d),
				strconv.Itoa(j + 1),
				strconv.FormatFloat(c.wage, 'f', 0, 64),
				strconv.FormatFloat(c.hours, 'f', 0, 64),
				contract,
				c.commute,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return w.Error()
}

// eta is the true linear predictor for one design cell.
func eta(c vignette) float64 {
	v := *bIcept + *bWage*c.wage + *bHours*c.hours
	if c.perm {
		v += *bPerm
	}
	switch c.commute {
	case "medium":
		v += *bMed
	case "long":
		v += *bLong
	}
	return v
}

// writeSurvey simulates ratings on a 1-10 scale from the true logit model
// and writes them in wide format, one row per respondent.
func writeSurvey(design [][]vignette, noise distuv.Normal) error {
	f, err := os.Create(*outSurvey)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"respondent_id", "deck"}
	for j := 1; j <= *vignettes; j++ {
		header = append(header, fmt.Sprintf("rating_%d", j))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := 0; i < *respondents; i++ {
		d := i % len(design)
		row := []string{fmt.Sprintf("r%04d", i+1), deckName(d)}
		for _, c := range design[d] {
			mu := 1/(1+math.Exp(-eta(c))) + noise.Rand()
			rating := math.Round(mu * 10)
			if rating < 1 {
				rating = 1
			}
			if rating > 10 {
				rating = 10
			}
			row = append(row, strconv.FormatFloat(rating, 'f', 0, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}
